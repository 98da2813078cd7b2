package rs485

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeRead(t *testing.T) {
	tests := []struct {
		name     string
		slave    byte
		register uint16
		count    uint16
		want     []byte
	}{
		{
			name:     "slave 1 register 0x1008 count 1",
			slave:    1,
			register: 0x1008,
			count:    1,
			want:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x10, 0x08, 0x00, 0x01},
		},
		{
			name:     "slave 9 register 0 count 2",
			slave:    9,
			register: 0x0000,
			count:    2,
			want:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x09, 0x03, 0x00, 0x00, 0x00, 0x02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeRead(tt.slave, tt.register, tt.count)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeRead() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeWrite(t *testing.T) {
	got := EncodeWrite(3, 0x1008, 0x0105)
	want := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x03, 0x06, 0x10, 0x08, 0x01, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeWrite() = % X, want % X", got, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		slave    byte
		function byte
		register uint16
		argument uint16
	}{
		{
			name:     "read request slave 1",
			frame:    EncodeRead(1, 0x1008, 1),
			slave:    1,
			function: FunctionReadHolding,
			register: 0x1008,
			argument: 1,
		},
		{
			name:     "write request slave 2",
			frame:    EncodeWrite(2, 0x1008, 5),
			slave:    2,
			function: FunctionWriteSingle,
			register: 0x1008,
			argument: 5,
		},
		{
			name:     "write request max value",
			frame:    EncodeWrite(255, 0xFFFF, 0xFFFF),
			slave:    255,
			function: FunctionWriteSingle,
			register: 0xFFFF,
			argument: 0xFFFF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode(tt.frame)
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if resp.Slave != tt.slave {
				t.Errorf("Slave = %d, want %d", resp.Slave, tt.slave)
			}
			if resp.Function != tt.function {
				t.Errorf("Function = %d, want %d", resp.Function, tt.function)
			}
			reg, ok := resp.Register()
			if !ok || reg != tt.register {
				t.Errorf("Register() = %d, %v, want %d, true", reg, ok, tt.register)
			}
			value, ok := resp.RegisterValue()
			if !ok || value != tt.argument {
				t.Errorf("RegisterValue() = %d, %v, want %d, true", value, ok, tt.argument)
			}
		})
	}
}

func TestDecodeShortFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: []byte{}},
		{name: "six bytes", frame: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06}},
		{name: "seven bytes", frame: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, ErrFrameTooShort) {
				t.Errorf("Decode() error = %v, want ErrFrameTooShort", err)
			}
		})
	}
}

func TestDecodeUnsupportedFunction(t *testing.T) {
	for _, fn := range []byte{0x00, 0x01, 0x04, 0x10, 0xFF} {
		frame := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x01, fn, 0x10, 0x08, 0x00, 0x01}
		_, err := Decode(frame)
		if !errors.Is(err, ErrUnsupportedFunction) {
			t.Errorf("Decode(function 0x%02X) error = %v, want ErrUnsupportedFunction", fn, err)
		}
	}
}

func TestResponseRegisterValueMissing(t *testing.T) {
	// Header-only frame: slave and function decode but no payload follows.
	resp, err := Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03})
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if _, ok := resp.RegisterValue(); ok {
		t.Error("RegisterValue() ok = true for empty payload, want false")
	}
	if _, ok := resp.Register(); ok {
		t.Error("Register() ok = true for empty payload, want false")
	}
}
