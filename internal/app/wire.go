//go:build wireinject

package app

import (
	"context"

	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, cfg *brcfg.Config) (*App, error) {
	wire.Build(
		provideAppBuilder,
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
		provideAppFromBuilder,
	)
	return nil, nil
}
