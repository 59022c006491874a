package connector

import (
	"context"
	"errors"

	"github.com/sells-group/leadenrich-connector/internal/resilience"
	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// guardedClient routes every Provider call through the shared breaker.
type guardedClient struct {
	next    bettercontact.Client
	breaker *resilience.Breaker
}

func (g *guardedClient) Submit(ctx context.Context, req bettercontact.SubmitRequest) (*bettercontact.SubmitResponse, error) {
	resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*bettercontact.SubmitResponse, error) {
		return g.next.Submit(ctx, req)
	})
	return resp, unavailable(bettercontact.OpSubmit, "", err)
}

func (g *guardedClient) GetResult(ctx context.Context, id string) (*bettercontact.ResultResponse, error) {
	resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*bettercontact.ResultResponse, error) {
		return g.next.GetResult(ctx, id)
	})
	return resp, unavailable(bettercontact.OpPoll, id, err)
}

func (g *guardedClient) GetLegacyResult(ctx context.Context, id string) (*bettercontact.ResultResponse, error) {
	resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*bettercontact.ResultResponse, error) {
		return g.next.GetLegacyResult(ctx, id)
	})
	return resp, unavailable(bettercontact.OpFetch, id, err)
}

// unavailable turns a breaker rejection into a Provider error so it reaches
// callers through the same envelope as any other upstream failure.
func unavailable(op bettercontact.Op, id string, err error) error {
	if !errors.Is(err, resilience.ErrBreakerOpen) {
		return err
	}
	return &bettercontact.Error{
		Kind:      bettercontact.KindProvider,
		Op:        op,
		Message:   "BetterContact API is temporarily unavailable, try again shortly",
		RequestID: id,
		Err:       err,
	}
}
