// Package consumer holds what runs after a discovery cycle completes.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
)

// ValueWriter writes one attribute value on a live connection.
type ValueWriter interface {
	WriteValue(h device.ConnHandle, valueHandle uint16, data []byte, withResponse bool) error
}

// WriterOptions configures Writer.
type WriterOptions struct {
	// CharacteristicUUID selects the target characteristic.
	CharacteristicUUID string
	// WithResponse requests acknowledged writes when the characteristic
	// supports them.
	WithResponse bool
	// ChunkSize is the largest payload sent in one write.
	ChunkSize int
	// InterChunkDelay spaces consecutive writes.
	InterChunkDelay time.Duration
}

// DefaultWriterOptions targets characteristic 0x0001 with unacknowledged
// 20-byte writes.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		CharacteristicUUID: "0001",
		ChunkSize:          20,
		InterChunkDelay:    20 * time.Millisecond,
	}
}

// Writer sends a payload to one characteristic of a discovered service.
type Writer struct {
	dst     ValueWriter
	payload []byte
	opts    WriterOptions
	uuid    ble.UUID
	logger  *logrus.Logger
}

// NewWriter validates opts and copies payload.
func NewWriter(dst ValueWriter, payload []byte, opts WriterOptions, logger *logrus.Logger) (*Writer, error) {
	if dst == nil {
		return nil, fmt.Errorf("value writer is required")
	}
	u, err := device.ParseUUID(opts.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("write characteristic: %w", err)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultWriterOptions().ChunkSize
	}
	if opts.InterChunkDelay < 0 {
		opts.InterChunkDelay = 0
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Writer{
		dst:     dst,
		payload: append([]byte(nil), payload...),
		opts:    opts,
		uuid:    u,
		logger:  logger,
	}, nil
}

// Write locates the characteristic in res and writes the payload in chunks.
func (w *Writer) Write(ctx context.Context, res central.Result) error {
	rec, err := w.find(res)
	if err != nil {
		return err
	}
	if !device.CanWrite(rec.Properties) {
		return fmt.Errorf("characteristic %s does not support write operations", device.UUIDString(rec.UUID))
	}
	if len(w.payload) == 0 {
		w.logger.Debug("Empty payload, nothing to write")
		return nil
	}

	// unacknowledged writes only where the peer allows them
	withResponse := w.opts.WithResponse && rec.Properties&ble.CharWrite != 0
	if rec.Properties&ble.CharWriteNR == 0 {
		withResponse = true
	}

	chunks := split(w.payload, w.opts.ChunkSize)
	log := w.logger.WithFields(logrus.Fields{
		"handle":        res.Handle,
		"uuid":          device.UUIDString(rec.UUID),
		"value_handle":  fmt.Sprintf("0x%04x", rec.ValueHandle),
		"with_response": withResponse,
	})

	for i, chunk := range chunks {
		if i > 0 && w.opts.InterChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.InterChunkDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.dst.WriteValue(res.Handle, rec.ValueHandle, chunk, withResponse); err != nil {
			return fmt.Errorf("failed to write characteristic %s (chunk %d/%d): %w",
				device.UUIDString(rec.UUID), i+1, len(chunks), err)
		}
		log.WithField("bytes", len(chunk)).Trace("Chunk written")
	}

	log.WithFields(logrus.Fields{
		"bytes":  len(w.payload),
		"chunks": len(chunks),
	}).Info("Payload written")
	return nil
}

func (w *Writer) find(res central.Result) (device.CharacteristicRecord, error) {
	for _, c := range res.Characteristics {
		if device.SameUUID(c.UUID, w.uuid) {
			return c, nil
		}
	}
	return device.CharacteristicRecord{}, &central.NotFoundError{
		Resource: "characteristic",
		UUIDs:    []string{device.UUIDString(res.Service.UUID), device.UUIDString(w.uuid)},
	}
}

func split(b []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > size {
		chunks = append(chunks, b[:size])
		b = b[size:]
	}
	return append(chunks, b)
}
