package holyiot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// MultiDecoder tries a list of variants in order; the first one whose gate
// accepts the record decodes it. A frame that has a variant's layout but
// fails its identity check is rejected outright and never offered to later
// variants, which would misread it.
type MultiDecoder struct {
	decoders []*Decoder
	logger   *slog.Logger
}

func NewMultiDecoder(variants []Variant, opts ...Option) (*MultiDecoder, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("at least one variant is required")
	}
	seen := make(map[string]struct{}, len(variants))
	m := &MultiDecoder{logger: buildOptions(opts).logger.With("variant", "auto")}
	for _, v := range variants {
		if _, dup := seen[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variant %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		d, err := NewDecoder(v, opts...)
		if err != nil {
			return nil, err
		}
		m.decoders = append(m.decoders, d)
	}
	return m, nil
}

// New returns the decoder for a configured variant name, where "auto"
// selects the registry of all built-in variants.
func New(name string, opts ...Option) (PayloadDecoder, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		return NewMultiDecoder(Variants(), opts...)
	}
	v, err := LookupVariant(name)
	if err != nil {
		return nil, err
	}
	return NewDecoder(v, opts...)
}

func (m *MultiDecoder) Matches(r Record) bool {
	_, ok := m.Decode(r)
	return ok
}

func (m *MultiDecoder) Decode(r Record) (Update, bool) {
	for _, d := range m.decoders {
		_, err := d.gate(r)
		if err == nil {
			return d.Decode(r)
		}
		if final(err) {
			break
		}
	}
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.Debug("holyiot: advertisement rejected", "addr", address(r), "reason", m.Explain(r))
	}
	return Update{}, false
}

// Explain joins the rejection reason of every variant, or returns nil when
// one of them accepts r.
func (m *MultiDecoder) Explain(r Record) error {
	var errs []error
	for _, d := range m.decoders {
		_, err := d.gate(r)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.variant.Name, err))
		if final(err) {
			break
		}
	}
	return errors.Join(errs...)
}

func final(err error) bool {
	return errors.Is(err, ErrIdentityMismatch) || errors.Is(err, ErrMalformedAddress)
}
