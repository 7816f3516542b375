package provider

import "fmt"

// New creates the Provider selected by cfg.Kind.
func New(cfg *Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindOpenAI:
		return NewOpenAI(cfg, nil)
	case KindConnect:
		return NewConnect(cfg, nil)
	case KindGRPC:
		return NewGRPC(cfg)
	case KindMock:
		return NewMock(nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}
