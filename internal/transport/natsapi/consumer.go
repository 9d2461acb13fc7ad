// Package natsapi exposes enrichment over NATS subjects. Publishers address
// an enricher by subject: a document sent to enrichd.enrich.<name> comes back
// enriched on the request's reply subject, or on enrichd.enriched.<name> for
// fire-and-forget publishes. Failures are published as error events instead.
//
// Enrichment lookups are idempotent reads, so the consumer does not retry;
// redelivery policy stays with the publisher.
package natsapi

import (
	"crypto/rand"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/matchgate/enrichd/internal/domain/document"
	"github.com/matchgate/enrichd/internal/usecase/enrich"
)

const (
	// EnrichSubjectPrefix is the request subject root; the last token names
	// the enricher.
	EnrichSubjectPrefix = "enrichd.enrich."
	// EnrichedSubjectPrefix receives enriched documents for requests that
	// carry no reply subject.
	EnrichedSubjectPrefix = "enrichd.enriched."
	// ErrorSubjectPrefix receives error events for failed enrichments.
	ErrorSubjectPrefix = "enrichd.errors."
)

// Publisher is the narrow view of *nats.Conn the consumer publishes through.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// errorEvent is the payload published to error subjects. Error carries the
// full chain; the bus is an operator surface, same trust zone as the logs.
type errorEvent struct {
	Error    string `json:"error"`
	Enricher string `json:"enricher"`
	MsgID    string `json:"msg_id"`
}

// Consumer routes enrichment requests from NATS subjects through registered
// enrichers. The subscription callback only parses and dispatches; results
// are published from whichever goroutine completes the lookup.
type Consumer struct {
	enrichers *enrich.Service
	pub       Publisher
	logger    *zap.Logger
	entropy   *ulid.LockedMonotonicReader
}

// New builds a consumer that publishes outcomes through pub.
func New(enrichers *enrich.Service, pub Publisher, logger *zap.Logger) *Consumer {
	return &Consumer{
		enrichers: enrichers,
		pub:       pub,
		logger:    logger,
		entropy:   &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)},
	}
}

// Subscribe starts the queue subscription on enrichd.enrich.*. Consumers
// sharing the queue name split the request stream instead of duplicating it.
func (c *Consumer) Subscribe(conn *nats.Conn, queue string) (*nats.Subscription, error) {
	return conn.QueueSubscribe(EnrichSubjectPrefix+"*", queue, c.handle)
}

func (c *Consumer) handle(msg *nats.Msg) {
	name := strings.TrimPrefix(msg.Subject, EnrichSubjectPrefix)
	msgID := c.messageID(msg)

	doc, err := document.FromJSON(msg.Data)
	if err != nil {
		c.publishError(name, msgID, err)
		return
	}

	proc, err := c.enrichers.Processor(name)
	if err != nil {
		c.publishError(name, msgID, err)
		return
	}

	reply := msg.Reply
	proc.Process(doc, func(_ enrich.Document, perr error) {
		if perr != nil {
			c.publishError(name, msgID, perr)
			return
		}
		c.publishEnriched(name, reply, msgID, doc)
	})
}

// messageID keeps a publisher-supplied Nats-Msg-Id for correlation and mints
// a ULID otherwise.
func (c *Consumer) messageID(msg *nats.Msg) string {
	if id := msg.Header.Get(nats.MsgIdHdr); id != "" {
		return id
	}
	return ulid.MustNew(ulid.Now(), c.entropy).String()
}

func (c *Consumer) publishEnriched(name, reply, msgID string, doc *document.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		c.publishError(name, msgID, err)
		return
	}

	subject := reply
	if subject == "" {
		subject = EnrichedSubjectPrefix + name
	}
	if err := c.pub.Publish(subject, data); err != nil {
		c.logger.Error("publish enriched document failed",
			zap.String("subject", subject),
			zap.String("msg_id", msgID),
			zap.Error(err),
		)
	}
}

func (c *Consumer) publishError(name, msgID string, cause error) {
	c.logger.Warn("enrichment failed",
		zap.String("enricher", name),
		zap.String("msg_id", msgID),
		zap.Error(cause),
	)

	data, _ := json.Marshal(errorEvent{Error: cause.Error(), Enricher: name, MsgID: msgID})
	if err := c.pub.Publish(ErrorSubjectPrefix+name, data); err != nil {
		c.logger.Error("publish error event failed",
			zap.String("enricher", name),
			zap.Error(err),
		)
	}
}
