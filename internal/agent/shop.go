package agent

import (
	"context"

	"github.com/lox/balatrobot/internal/screen"
)

// ShopPolicy decides what to do with a shop visit. It must end by leaving the
// shop.
type ShopPolicy interface {
	Visit(ctx context.Context, shop *screen.Shop) (*screen.SelectBlind, error)
}

// LeaveShop walks straight out without buying anything
type LeaveShop struct{}

func (LeaveShop) Visit(ctx context.Context, shop *screen.Shop) (*screen.SelectBlind, error) {
	return shop.Leave(ctx)
}
