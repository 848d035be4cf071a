package protocol

import "testing"

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	scratch.Output([]byte{1, 2, 3})
	if scratch.Len() != 3 {
		t.Errorf("Expected length 3, got %d", scratch.Len())
	}

	scratch.Output([]byte{4, 5})
	result := scratch.Result()
	if len(result) != 5 || result[3] != 4 {
		t.Errorf("Expected [1 2 3 4 5], got %v", result)
	}

	scratch.Reset()
	if scratch.Len() != 0 {
		t.Errorf("After reset, expected length 0, got %d", scratch.Len())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	scratch.Output([]byte{1, 2, 3})

	if scratch.Len() != MessageMax {
		t.Errorf("Expected length %d, got %d", MessageMax, scratch.Len())
	}
	if scratch.Overflow() != 2 {
		t.Errorf("Expected 2 bytes of overflow, got %d", scratch.Overflow())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	written := fifo.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}
	if fifo.Free() != 4 {
		t.Errorf("Expected 4 bytes free, got %d", fifo.Free())
	}

	readBuf := make([]byte, 3)
	if read := fifo.Read(readBuf); read != 3 {
		t.Errorf("Expected to read 3 bytes, read %d", read)
	}
	if readBuf[0] != 1 || readBuf[1] != 2 || readBuf[2] != 3 {
		t.Errorf("Read data mismatch: got %v", readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}

	// Pop past the end empties the buffer
	fifo.Pop(10)
	if !fifo.IsEmpty() {
		t.Error("Expected empty FIFO after over-pop")
	}

	fifo.Reset()
	if written = fifo.Write(make([]byte, 12)); written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
}

func TestFifoBufferWrappedData(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(2)
	if written := fifo.Write([]byte{5, 6}); written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	data := fifo.Data()
	expected := []byte{3, 4, 5, 6}
	if len(data) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, data)
	}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Wrapped data mismatch at %d: expected %v, got %v", i, expected, data)
		}
	}
}
