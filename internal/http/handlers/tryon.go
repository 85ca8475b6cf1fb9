package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwhit732/vto-mvp/internal/domain"
	"github.com/jwhit732/vto-mvp/internal/imaging"
	"github.com/jwhit732/vto-mvp/internal/providers/genai"
	"github.com/jwhit732/vto-mvp/internal/ratelimit"
)

// maxMultipartMemory bounds in-memory multipart parsing; larger parts spill
// to disk and are still capped per image by the normalizer.
const maxMultipartMemory = 12 << 20

const defaultInstruction = "Make the person in the first image wear the garment shown in the second image. " +
	"Keep the person's pose, body shape, face and background unchanged. " +
	"Fit the garment naturally with realistic draping, lighting and shadows."

type tryOnResponse struct {
	Image string `json:"image"`
}

// TryOn is the combine operation: validate both uploads, gate on the rate
// limiter, call the provider once and return the composite image.
func (a *App) TryOn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	person, personErr := formImage(r, "person")
	garment, garmentErr := formImage(r, "garment")
	if personErr != nil || garmentErr != nil {
		a.error(w, http.StatusBadRequest, "both images are required")
		return
	}

	normPerson, err := imaging.Normalize("person", person)
	if err != nil {
		a.validationError(w, err)
		return
	}
	normGarment, err := imaging.Normalize("garment", garment)
	if err != nil {
		a.validationError(w, err)
		return
	}

	identity := ratelimit.ClientIdentity(r)
	decision := a.Limiter.Check(identity)
	switch decision.Verdict {
	case ratelimit.Delay:
		a.json(w, http.StatusTooManyRequests, errorResponse{
			Error:      fmt.Sprintf("you're going a bit fast, try again in %d seconds", decision.RetryAfter),
			RetryAfter: decision.RetryAfter,
			Type:       "delay",
		})
		return
	case ratelimit.Reject:
		message := "you've reached today's try-on limit, come back tomorrow"
		if decision.GlobalExhausted {
			message = "the daily service limit has been reached, come back tomorrow"
		}
		a.json(w, http.StatusTooManyRequests, errorResponse{Error: message, Type: "limit_reached"})
		return
	}

	instruction := strings.TrimSpace(r.FormValue("prompt"))
	if instruction == "" {
		instruction = defaultInstruction
	}

	// Quota is charged before dispatch by default, so a failed provider
	// call still counts. ChargeOnFailure=false flips to charge-on-success.
	if a.Config.ChargeOnFailure {
		a.Limiter.Record(identity)
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.Config.UpstreamTimeout)
	defer cancel()

	image, err := a.Generator.TryOn(ctx,
		genai.ImagePart{MIME: normPerson.MIME, Data: normPerson.Base64()},
		genai.ImagePart{MIME: normGarment.MIME, Data: normGarment.Base64()},
		instruction,
	)
	if err != nil {
		a.generationError(w, r, err)
		return
	}

	if !a.Config.ChargeOnFailure {
		a.Limiter.Record(identity)
	}
	a.json(w, http.StatusOK, tryOnResponse{Image: image})
}

// Limits reports the caller's current admission state without consuming
// quota; the UI polls it to grey out the generate button.
func (a *App) Limits(w http.ResponseWriter, r *http.Request) {
	decision := a.Limiter.Check(ratelimit.ClientIdentity(r))
	a.json(w, http.StatusOK, map[string]any{
		"allowed":         decision.Verdict == ratelimit.Allow,
		"retryAfter":      decision.RetryAfter,
		"remaining":       decision.RemainingClient,
		"remainingGlobal": decision.RemainingGlobal,
	})
}

func formImage(r *http.Request, field string) (imaging.Payload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return imaging.Payload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return imaging.Payload{}, err
	}
	return imaging.Payload{
		Data: data,
		MIME: header.Header.Get("Content-Type"),
		Size: header.Size,
	}, nil
}

func (a *App) validationError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		a.error(w, http.StatusBadRequest, vErr.Error())
		return
	}
	a.error(w, http.StatusBadRequest, "invalid image")
}

// generationError is the single place provider failures become HTTP answers.
func (a *App) generationError(w http.ResponseWriter, r *http.Request, err error) {
	log := a.Logger.Error().Err(err).Str("path", r.URL.Path)

	var cpErr *domain.ContentPolicyError
	var upErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		log.Msg("tryon: provider credential not configured")
		a.error(w, http.StatusInternalServerError, "image service is not configured")
	case errors.As(err, &cpErr):
		log.Msg("tryon: generation blocked by provider policy")
		a.error(w, http.StatusBadRequest, "the provider declined to process these images, try different ones")
	case errors.Is(err, domain.ErrNoImage):
		log.Msg("tryon: provider returned no image")
		a.error(w, http.StatusBadGateway, "the provider returned no image, try again")
	case errors.As(err, &upErr):
		log.Msg("tryon: provider call failed")
		a.error(w, http.StatusBadGateway, "the image provider is unavailable, try again shortly")
	case errors.Is(err, context.DeadlineExceeded):
		log.Msg("tryon: provider call timed out")
		a.error(w, http.StatusBadGateway, "the image provider took too long, try again shortly")
	default:
		log.Msg("tryon: unexpected failure")
		a.error(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
