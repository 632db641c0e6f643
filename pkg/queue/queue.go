// Package queue publica e consome alvos do crawl de tracks via NATS JetStream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	StreamName     = "CRAWL"
	DefaultSubject = "jobs.tracks"
	// ackWait cobre um perfil grande com muitas tracks novas.
	ackWait = 30 * time.Minute
)

// TrackJob é um perfil pronto para o crawl de tracks.
type TrackJob struct {
	UserID    int64  `json:"user_id"`
	Permalink string `json:"permalink"`
}

func (j TrackJob) Validate() error {
	if j.UserID <= 0 {
		return fmt.Errorf("queue: job sem user_id")
	}
	return nil
}

func Decode(data []byte) (TrackJob, error) {
	var j TrackJob
	if err := json.Unmarshal(data, &j); err != nil {
		return j, fmt.Errorf("queue: job ilegível: %w", err)
	}
	return j, j.Validate()
}

type Queue struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	durable string
	sub     *nats.Subscription
}

// Connect conecta e garante que o stream CRAWL exista.
func Connect(url, subject, durable string) (*Queue, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, nats.Name("soundgraph"))
	if err != nil {
		return nil, fmt.Errorf("erro NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("erro JetStream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		log.Warn().Err(err).Str("stream", StreamName).Msg("[Queue] stream não criado (ok se já existe)")
	}
	return &Queue{nc: nc, js: js, subject: subject, durable: durable}, nil
}

func (q *Queue) Publish(ctx context.Context, job TrackJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// Msg-Id deixa o JetStream descartar publicações repetidas do mesmo perfil
	msg := nats.NewMsg(q.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("track:%d", job.UserID))
	if _, err := q.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publicar job %d: %w", job.UserID, err)
	}
	return nil
}

// Acker é satisfeito por *nats.Msg.
type Acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// Delivery é um job recebido. Ack só depois do flush do perfil.
type Delivery struct {
	Job TrackJob
	msg Acker
}

func NewDelivery(job TrackJob, msg Acker) Delivery {
	return Delivery{Job: job, msg: msg}
}

func (d Delivery) Ack() error  { return d.msg.Ack() }
func (d Delivery) Nak() error  { return d.msg.Nak() }
func (d Delivery) Term() error { return d.msg.Term() }

// Fetch puxa até n jobs do consumer durável. Sem mensagens, devolve vazio.
// Mensagens ilegíveis são terminadas e não entram no resultado.
func (q *Queue) Fetch(ctx context.Context, n int, wait time.Duration) ([]Delivery, error) {
	if q.sub == nil {
		sub, err := q.js.PullSubscribe(q.subject, q.durable, nats.AckWait(ackWait))
		if err != nil {
			return nil, fmt.Errorf("erro ao criar pull subscriber: %w", err)
		}
		q.sub = sub
	}

	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	msgs, err := q.sub.Fetch(n, nats.Context(fetchCtx))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]Delivery, 0, len(msgs))
	for _, m := range msgs {
		job, err := Decode(m.Data)
		if err != nil {
			log.Error().Err(err).Msg("[Queue] job descartado")
			_ = m.Term()
			continue
		}
		out = append(out, NewDelivery(job, m))
	}
	return out, nil
}

func (q *Queue) Close() {
	if q.sub != nil {
		_ = q.sub.Unsubscribe()
	}
	q.nc.Close()
}
