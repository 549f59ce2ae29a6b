package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

type fakeChatModel struct {
	reply     string
	chunks    []string
	genErr    error
	streamErr error
	recvErr   error
	lastInput []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.lastInput = input
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.lastInput = input
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.recvErr != nil {
		sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
		for _, chunk := range f.chunks {
			sw.Send(&schema.Message{Role: schema.Assistant, Content: chunk}, nil)
		}
		sw.Send(nil, f.recvErr)
		sw.Close()
		return sr, nil
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, chunk := range f.chunks {
		msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: chunk})
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func prompt() []models.Message {
	return []models.Message{
		{Role: models.RoleSystem, Content: "you are a coach"},
		{Role: models.RoleUser, Content: "how do I pace a 10k?"},
	}
}

func TestGenerateReturnsCompletion(t *testing.T) {
	fake := &fakeChatModel{reply: "start slow, finish fast"}
	svc := NewService(fake)

	answer, err := svc.Generate(context.Background(), prompt())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "start slow, finish fast" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if len(fake.lastInput) != 2 {
		t.Fatalf("expected 2 prompt messages, got %d", len(fake.lastInput))
	}
	if fake.lastInput[0].Role != schema.System || fake.lastInput[1].Role != schema.User {
		t.Fatalf("roles not mapped: %v, %v", fake.lastInput[0].Role, fake.lastInput[1].Role)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	svc := NewService(&fakeChatModel{})
	if _, err := svc.Generate(context.Background(), nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestGenerateModelError(t *testing.T) {
	svc := NewService(&fakeChatModel{genErr: errors.New("rate limited")})
	if _, err := svc.Generate(context.Background(), prompt()); err == nil {
		t.Fatal("expected model error to propagate")
	}
}

func TestStreamAccumulatesDeltas(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"start ", "slow, ", "finish fast"}}
	svc := NewService(fake)

	var deltas []string
	answer, err := svc.Stream(context.Background(), prompt(), func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if answer != "start slow, finish fast" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %d: %v", len(deltas), deltas)
	}
	if deltas[0] != "start " {
		t.Fatalf("unexpected first delta: %q", deltas[0])
	}
}

func TestStreamSkipsEmptyChunks(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"", "hello", ""}}
	svc := NewService(fake)

	var deltas []string
	answer, err := svc.Stream(context.Background(), prompt(), func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if answer != "hello" || len(deltas) != 1 {
		t.Fatalf("empty chunks should be dropped: answer=%q deltas=%v", answer, deltas)
	}
}

func TestStreamCallbackErrorAborts(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"one", "two", "three"}}
	svc := NewService(fake)

	sentinel := errors.New("client gone")
	partial, err := svc.Stream(context.Background(), prompt(), func(delta string) error {
		if delta == "two" {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if partial != "onetwo" {
		t.Fatalf("expected partial answer up to the failure, got %q", partial)
	}
}

func TestStreamCancelledMidStream(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"start "}, recvErr: context.Canceled}
	svc := NewService(fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	partial, err := svc.Stream(ctx, prompt(), func(delta string) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if partial != "start " {
		t.Fatalf("expected the partial answer, got %q", partial)
	}
}

func TestStreamEmptyPrompt(t *testing.T) {
	svc := NewService(&fakeChatModel{})
	if _, err := svc.Stream(context.Background(), nil, nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}
