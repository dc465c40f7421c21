package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventPublisher 业务侧只依赖这个接口
type EventPublisher interface {
	Publish(ctx context.Context, key string, data any) error
}

// channel *amqp.Channel 中发布用到的部分
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type session struct {
	conn io.Closer
	ch   channel
}

func (s session) close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Publisher 连接或 channel 断开后在下一次发布时重连
type Publisher struct {
	mu       sync.Mutex
	exchange string
	dial     func() (session, error)
	cur      session
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{exchange: exchange, dial: func() (session, error) { return dialSession(url, exchange) }}
	s, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.cur = s
	return p, nil
}

func dialSession(url, exchange string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return session{}, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return session{}, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return session{}, fmt.Errorf("declare exchange: %w", err)
	}
	return session{conn: conn, ch: ch}, nil
}

// acquire 调用方持有 mu
func (p *Publisher) acquire(force bool) (channel, error) {
	if !force && p.cur.ch != nil && !p.cur.ch.IsClosed() {
		return p.cur.ch, nil
	}
	p.cur.close()
	p.cur = session{}
	s, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.cur = s
	return s.ch, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.acquire(false)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	// 断线：重连后重发一次
	if ch, err = p.acquire(true); err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
}

// Publish 包一层 Envelope
func (p *Publisher) Publish(ctx context.Context, key string, data any) error {
	env, err := NewEnvelope(key, data)
	if err != nil {
		return err
	}
	return p.PublishJSON(ctx, key, env)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.close()
	p.cur = session{}
	return nil
}

// Nop 未启用 MQ 时使用：只记 debug 日志
type Nop struct{ Log *zap.Logger }

func (n Nop) Publish(_ context.Context, key string, _ any) error {
	if n.Log != nil {
		n.Log.Debug("event dropped (mq disabled)", zap.String("key", key))
	}
	return nil
}

// Recorder 记录已发布事件，测试与本地调试用
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, key string, data any) error {
	env, err := NewEnvelope(key, data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.Events = append(r.Events, env)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Event)
	}
	return out
}

// Inline 未启用 MQ 时进程内异步投递给 Handler（通知邮件不丢）
type Inline struct {
	H   Handler
	Log *zap.Logger
	wg  sync.WaitGroup
}

func (p *Inline) Publish(ctx context.Context, key string, data any) error {
	env, err := NewEnvelope(key, data)
	if err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.H(context.WithoutCancel(ctx), env); err != nil && p.Log != nil {
			p.Log.Warn("inline event handler failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return nil
}

// Wait 等待已投递的事件处理完（测试与优雅退出）
func (p *Inline) Wait() { p.wg.Wait() }

// Last 最近一条指定 key 的事件
func (r *Recorder) Last(key string) (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Event == key {
			return r.Events[i], true
		}
	}
	return Envelope{}, false
}
