package pages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/observability"
	"github.com/orbitfold/exoview/internal/validate"
	"github.com/orbitfold/exoview/model"
)

// CreateForm is the create-planet form. Every field is a string so the UI can
// submit text inputs verbatim; validation happens here, before anything
// reaches the network.
type CreateForm struct {
	Name            string `json:"name"`
	DiscoveryMethod string `json:"discovery_method"`
	DiscoveryYear   string `json:"disc_year"`
	OrbitalPeriod   string `json:"orbital_period"`
	Radius          string `json:"radius"`
	Mass            string `json:"mass"`
	StellarTemp     string `json:"st_temp"`
	StellarRadius   string `json:"st_radius"`
	StellarMass     string `json:"st_mass"`
}

// CreateResult is the outcome of a create mutation. Replayed is true when the
// response came from the idempotency store instead of the upstream.
type CreateResult struct {
	Planet   model.PlanetRecord `json:"planet"`
	Replayed bool               `json:"replayed,omitempty"`
}

// numericFormFields maps optional numeric form fields to their wire keys.
var numericFormFields = []struct {
	key   string
	value func(f *CreateForm) string
}{
	{"disc_year", func(f *CreateForm) string { return f.DiscoveryYear }},
	{"orbital_period", func(f *CreateForm) string { return f.OrbitalPeriod }},
	{"radius", func(f *CreateForm) string { return f.Radius }},
	{"mass", func(f *CreateForm) string { return f.Mass }},
	{"st_temp", func(f *CreateForm) string { return f.StellarTemp }},
	{"st_radius", func(f *CreateForm) string { return f.StellarRadius }},
	{"st_mass", func(f *CreateForm) string { return f.StellarMass }},
}

// buildCreateBody validates the form and assembles the upstream request body.
// Only present fields appear in the body.
func buildCreateBody(form CreateForm) (map[string]any, []model.FieldError) {
	var errs []model.FieldError
	body := make(map[string]any)

	name := strings.TrimSpace(form.Name)
	if name == "" {
		errs = append(errs, model.FieldError{
			Field: "name", Code: "REQUIRED", Message: "name must not be empty",
		})
	} else {
		body["name"] = name
	}

	if method := strings.TrimSpace(form.DiscoveryMethod); method != "" {
		body["discovery_method"] = method
	}

	for _, nf := range numericFormFields {
		raw := strings.TrimSpace(nf.value(&form))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, model.FieldError{
				Field: nf.key, Code: "NOT_A_NUMBER",
				Message: nf.key + " must be a finite number",
			})
			continue
		}
		body[nf.key] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return body, nil
}

// CreatePlanet validates the form, posts the record upstream, and invalidates
// the planets cache family on success. When idemKey is non-empty and an
// idempotency store is configured, repeated submissions with the same key and
// body replay the first result instead of creating a duplicate.
func (p *Provider) CreatePlanet(ctx context.Context, form CreateForm, idemKey string) (*CreateResult, error) {
	body, fieldErrs := buildCreateBody(form)
	if fieldErrs != nil {
		return nil, model.NewValidationError(fieldErrs)
	}

	logger := observability.RequestLogger(ctx, p.logger)
	logger.Debug("create planet", zap.Any("body", observability.RedactBody(body, nil)))

	var storeKey, inputHash string
	if idemKey != "" && p.idem != nil {
		storeKey = FormatIdempotencyKey(idemKey)
		inputHash = hashBody(body)

		cached, found, err := p.idem.Check(ctx, storeKey, inputHash)
		if err != nil {
			return nil, err
		}
		if found {
			if p.recorder != nil {
				p.recorder.RecordIdempotentReplay()
			}
			logger.Info("create replayed from idempotency store", zap.String("key", idemKey))
			return &CreateResult{Planet: *cached, Replayed: true}, nil
		}
	}

	raw, err := p.catalog.CreatePlanet(ctx, body)
	if err != nil {
		p.recordMutation("create", "error")
		return nil, err
	}
	planet, err := validate.Planet(raw)
	if err != nil {
		p.recordValidationFailure("planet")
		p.recordMutation("create", "error")
		return nil, err
	}

	p.recordMutation("create", "success")
	p.invalidate(planetsFamily)
	logger.Info("planet created",
		zap.Int64("id", planet.ID),
		zap.String("name", planet.Name))

	if storeKey != "" {
		if err := p.idem.Store(ctx, storeKey, inputHash, planet, p.idemTTL); err != nil {
			logger.Warn("idempotency store failed", zap.Error(err))
		}
	}
	return &CreateResult{Planet: planet}, nil
}

// DeletePlanet parses the raw id, soft-deletes the record upstream, and
// invalidates the planets cache family on success. A 204 from the upstream is
// success with no payload.
func (p *Provider) DeletePlanet(ctx context.Context, rawID string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id < 1 {
		return model.NewBadRequestError("planet id must be a positive integer")
	}

	if err := p.catalog.DeletePlanet(ctx, id); err != nil {
		p.recordMutation("delete", "error")
		return err
	}

	p.recordMutation("delete", "success")
	p.invalidate(planetsFamily)
	observability.RequestLogger(ctx, p.logger).Info("planet deleted", zap.Int64("id", id))
	return nil
}

// hashBody computes a stable hash of the create body for idempotency
// conflict detection. Map marshalling sorts keys, so equal bodies always
// hash equal.
func hashBody(body map[string]any) string {
	data, _ := json.Marshal(body)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
