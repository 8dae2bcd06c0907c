// Package nats bridges the tag reader over NATS: scans arrive on a subject,
// writes are request/reply round trips acknowledged by the reader.
package nats

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"time"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"

	// External Packages
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Subjects struct {
	Scan   string
	Write  string
	Errors string
}

// Connect connects to the NATS server, authenticating with token when set.
func Connect(url, token, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

type Transport struct {
	Conn         *nats.Conn
	Subjects     Subjects
	WriteTimeout time.Duration
	Logger       *zap.Logger

	errs   chan error
	errSub *nats.Subscription
}

// NewTransport subscribes to the reader's error subject. Close releases it.
func NewTransport(conn *nats.Conn, subjects Subjects, writeTimeout time.Duration, logger *zap.Logger) (*Transport, error) {
	t := &Transport{
		Conn:         conn,
		Subjects:     subjects,
		WriteTimeout: writeTimeout,
		Logger:       logger,
		errs:         make(chan error, 16),
	}

	if subjects.Errors != "" {
		sub, err := conn.Subscribe(subjects.Errors, func(msg *nats.Msg) {
			t.fail(fmt.Errorf("reader: %s", string(msg.Data)))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subjects.Errors, err)
		}
		t.errSub = sub
	}
	return t, nil
}

func (t *Transport) Close() error {
	if t.errSub != nil {
		return t.errSub.Unsubscribe()
	}
	return nil
}

// Scan subscribes to the scan subject for the lifetime of ctx.
func (t *Transport) Scan(ctx context.Context) (<-chan models.TagEvent, error) {
	msgs := make(chan *nats.Msg, 16)
	sub, err := t.Conn.ChanSubscribe(t.Subjects.Scan, msgs)
	if err != nil {
		return nil, errors.TransportErr("scan", err)
	}

	events := make(chan models.TagEvent, 8)
	go func() {
		defer close(events)
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				t.Logger.Warn("failed to unsubscribe scan", zap.Error(err))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				ev, err := decodeScan(msg.Data)
				if err != nil {
					t.fail(err)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// Write sends a write request and waits for the reader's acknowledgement.
func (t *Transport) Write(ctx context.Context, fields []models.Field) error {
	data, err := json.Marshal(models.WriteRequest{RequestID: uuid.NewString(), Fields: fields})
	if err != nil {
		return fmt.Errorf("failed to marshal write request: %w", err)
	}

	if t.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.WriteTimeout)
		defer cancel()
	}

	msg, err := t.Conn.RequestWithContext(ctx, t.Subjects.Write, data)
	if err != nil {
		return fmt.Errorf("write request failed: %w", err)
	}
	return parseReply(msg.Data)
}

func (t *Transport) Errors() <-chan error {
	return t.errs
}

func (t *Transport) fail(err error) {
	select {
	case t.errs <- err:
	default:
		t.Logger.Warn("reading error dropped", zap.Error(err))
	}
}

// decodeScan parses a scan message. Reader-side errors embedded in the
// message are returned as errors, not events.
func decodeScan(data []byte) (models.TagEvent, error) {
	var ev models.TagEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, errors.E(errors.Decode, "malformed reader message", err)
	}
	if ev.Error != "" {
		return ev, fmt.Errorf("reader: %s", ev.Error)
	}
	if ev.SerialNumber == "" {
		return ev, errors.E(errors.Decode, "tag event without serial number", nil)
	}
	return ev, nil
}

func parseReply(data []byte) error {
	var reply models.WriteReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("malformed write reply: %w", err)
	}
	if !reply.OK {
		if reply.Error == "" {
			reply.Error = "write rejected"
		}
		return fmt.Errorf("reader: %s", reply.Error)
	}
	return nil
}
