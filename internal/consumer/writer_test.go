package consumer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
	"github.com/srg/blemap/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockValueWriter struct {
	mock.Mock
}

func (m *MockValueWriter) WriteValue(h device.ConnHandle, valueHandle uint16, data []byte, withResponse bool) error {
	return m.Called(h, valueHandle, data, withResponse).Error(0)
}

func (m *MockValueWriter) chunks() [][]byte {
	var out [][]byte
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(2).([]byte))
	}
	return out
}

func discovered(props string) central.Result {
	p := testutils.CreateMockPeripheral().
		WithStartHandle(0x10).
		WithService("1234").
		WithCharacteristic("0002", "read,notify").
		WithCharacteristic("0001", props)
	svc := p.Build()[0]
	return central.Result{
		Handle:          device.ConnHandle(7),
		Address:         "AA:BB:CC:DD:EE:01",
		Service:         device.ServiceRecord{UUID: svc.UUID, Start: svc.Handle, End: svc.EndHandle},
		Characteristics: p.CharacteristicRecords(0),
	}
}

func fastOptions() WriterOptions {
	opts := DefaultWriterOptions()
	opts.InterChunkDelay = 0
	return opts
}

func TestWriter_ChunksPayload(t *testing.T) {
	// GOAL: Verify the payload reaches the target value handle in ordered 20-byte chunks
	//
	// TEST SCENARIO: 45-byte payload → three writes (20, 20, 5) to characteristic 0001 without response

	helper := testutils.NewTestHelper(t)
	payload := bytes.Repeat([]byte("abcdefghi"), 5)

	dst := &MockValueWriter{}
	dst.On("WriteValue", device.ConnHandle(7), uint16(0x14), mock.Anything, false).Return(nil)

	w, err := NewWriter(dst, payload, fastOptions(), helper.Logger)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), discovered("write,wnr")))

	got := dst.chunks()
	require.Len(t, got, 3)
	assert.Len(t, got[0], 20)
	assert.Len(t, got[1], 20)
	assert.Len(t, got[2], 5)
	assert.Equal(t, payload, bytes.Join(got, nil), "chunks MUST reassemble to the payload")
}

func TestWriter_WriteMode(t *testing.T) {
	tests := []struct {
		name         string
		props        string
		withResponse bool
		want         bool
	}{
		{"no-response preferred", "write,wnr", false, false},
		{"response requested", "write,wnr", true, true},
		{"only acknowledged writes", "write", false, true},
		{"only unacknowledged writes", "wnr", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := &MockValueWriter{}
			dst.On("WriteValue", mock.Anything, mock.Anything, mock.Anything, tt.want).Return(nil).Once()

			opts := fastOptions()
			opts.WithResponse = tt.withResponse
			w, err := NewWriter(dst, []byte{0x01}, opts, nil)
			require.NoError(t, err)

			require.NoError(t, w.Write(context.Background(), discovered(tt.props)))
			dst.AssertExpectations(t)
		})
	}
}

func TestWriter_Errors(t *testing.T) {
	t.Run("characteristic missing", func(t *testing.T) {
		opts := fastOptions()
		opts.CharacteristicUUID = "ffe1"
		w, err := NewWriter(&MockValueWriter{}, []byte("x"), opts, nil)
		require.NoError(t, err)

		err = w.Write(context.Background(), discovered("write"))
		var nf *central.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "characteristic", nf.Resource)
		assert.Equal(t, []string{"1234", "ffe1"}, nf.UUIDs)
	})

	t.Run("not writable", func(t *testing.T) {
		dst := &MockValueWriter{}
		w, err := NewWriter(dst, []byte("x"), fastOptions(), nil)
		require.NoError(t, err)

		assert.ErrorContains(t, w.Write(context.Background(), discovered("read")), "does not support write")
		dst.AssertNotCalled(t, "WriteValue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transport failure stops the payload", func(t *testing.T) {
		dst := &MockValueWriter{}
		dst.On("WriteValue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("not connected")).Once()
		w, err := NewWriter(dst, bytes.Repeat([]byte{1}, 50), fastOptions(), nil)
		require.NoError(t, err)

		err = w.Write(context.Background(), discovered("wnr"))
		assert.ErrorContains(t, err, "chunk 1/3")
		dst.AssertNumberOfCalls(t, "WriteValue", 1)
	})

	t.Run("cancelled between chunks", func(t *testing.T) {
		dst := &MockValueWriter{}
		dst.On("WriteValue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		opts := fastOptions()
		opts.InterChunkDelay = time.Hour
		w, err := NewWriter(dst, bytes.Repeat([]byte{1}, 30), opts, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, w.Write(ctx, discovered("wnr")), context.DeadlineExceeded)
		dst.AssertNumberOfCalls(t, "WriteValue", 1)
	})

	t.Run("bad uuid", func(t *testing.T) {
		opts := fastOptions()
		opts.CharacteristicUUID = "zz"
		_, err := NewWriter(&MockValueWriter{}, nil, opts, nil)
		assert.Error(t, err)
	})
}

func TestWriter_EmptyPayload(t *testing.T) {
	dst := &MockValueWriter{}
	w, err := NewWriter(dst, nil, fastOptions(), nil)
	require.NoError(t, err)

	assert.NoError(t, w.Write(context.Background(), discovered("write")))
	assert.Empty(t, dst.Calls, "an empty payload MUST NOT be written")
}

func TestSplit(t *testing.T) {
	assert.Equal(t, [][]byte{{1, 2}, {3}}, split([]byte{1, 2, 3}, 2))
	assert.Equal(t, [][]byte{{1, 2}}, split([]byte{1, 2}, 2))
}
