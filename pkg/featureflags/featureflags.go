package featureflags

import (
	"context"

	"practice-controlplane/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const (
	// AsyncSeatReconcile moves webhook-driven seat reconciliation onto the worker queue.
	AsyncSeatReconcile = "async_seat_reconcile"
)

type FeatureFlag interface {
	Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error)
	IsEnabled(ctx context.Context, identifier, feature string) bool
}

type featureflag struct {
	client   *flagsmith.Client
	defaults map[string]bool
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

// ProvideFeatureFlag falls back to static defaults taken from config when no Flagsmith key is configured.
func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	defaults := map[string]bool{
		AsyncSeatReconcile: p.Config.Billing.AsyncReconcile,
	}

	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{defaults: defaults}
	}

	opts := []flagsmith.Option{}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client:   flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
		defaults: defaults,
	}
}

// Static returns a FeatureFlag that only answers from the given values.
func Static(values map[string]bool) FeatureFlag {
	return &featureflag{defaults: values}
}

func (s *featureflag) Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error) {
	if s.client == nil {
		return flagsmith.Flags{}, nil
	}

	var traitSlice []*flagsmith.Trait
	if len(traits) > 0 {
		traitSlice = traits
	}

	return s.client.GetIdentityFlags(identifier, traitSlice)
}

// IsEnabled evaluates feature for the identity (a tenant ID). Lookup failures fall back to the default.
func (s *featureflag) IsEnabled(ctx context.Context, identifier, feature string) bool {
	fallback := s.defaults[feature]
	if s.client == nil {
		return fallback
	}

	flags, err := s.Flags(ctx, identifier)
	if err != nil {
		zap.L().Warn("failed to fetch feature flags", zap.String("identifier", identifier), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return fallback
	}
	return enabled
}
