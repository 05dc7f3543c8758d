package pipeline

import (
	"context"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/metrics"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/transfer"
)

// GenerationResult describes the outcome of one image pipeline run.
type GenerationResult struct {
	Brand                    string         `json:"brand"`
	PerfumeName              string         `json:"perfume_name"`
	Timestamp                string         `json:"timestamp"`
	ImageURL                 string         `json:"image_url"`
	RequiresManualProcessing bool           `json:"requires_manual_processing"`
	OriginalFilename         string         `json:"original_filename,omitempty"`
	NobgFilename             string         `json:"nobg_filename,omitempty"`
	FinalFilename            string         `json:"final_filename,omitempty"`
	Fallbacks                []domain.Stage `json:"fallbacks,omitempty"`
}

type source struct {
	name string
	data []byte
}

// Generate runs ACQUIRE_SOURCE, REMOVE_BACKGROUND, STYLIZE and PERSIST for
// req. Background removal and stylization never abort the run: a failed stage
// hands its input forward instead.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*GenerationResult, error) {
	req = trimRequest(req)
	if req.Brand == "" || req.Name == "" || req.Description == "" {
		return nil, fmt.Errorf("%w: brand, perfume name and description are required", domain.ErrInvalidRequest)
	}

	ts := Timestamp(p.now())
	safe := SafeName(req.Brand, req.Name)
	log := p.logger.With().Str("brand", req.Brand).Str("perfume", req.Name).Str("timestamp", ts).Logger()

	configured := p.editor.HasCredentials()
	src, err := p.acquireSource(ctx, req, safe, ts, configured)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("image", "failed").Inc()
		return nil, err
	}

	finalName := ArtifactName(safe, SuffixStyled, ts, "png")
	result := &GenerationResult{
		Brand:            req.Brand,
		PerfumeName:      req.Name,
		Timestamp:        ts,
		OriginalFilename: src.name,
	}

	if !configured {
		log.Warn().Str("provider", p.editor.Name()).Msg("pipeline: image provider not configured, recording pending generation")
		if err := p.history.Append(ctx, domain.GenerationRecord{
			Timestamp:     ts,
			Brand:         req.Brand,
			PerfumeName:   req.Name,
			Description:   req.Description,
			OriginalImage: src.name,
			FinalImage:    finalName,
			Status:        domain.GenerationPending,
		}); err != nil {
			metrics.PipelineRuns.WithLabelValues("image", "failed").Inc()
			return nil, err
		}
		metrics.PipelineRuns.WithLabelValues("image", "pending").Inc()
		result.ImageURL = req.ImageURL
		result.RequiresManualProcessing = true
		return result, nil
	}

	stylizeInput := stages.Image{Data: src.data, MIME: transfer.SniffMIME(src.data)}
	nobg, err := p.editor.RemoveBackground(ctx, stages.BackgroundInput{Image: stylizeInput, Prompt: req.PromptBackground})
	if err == nil {
		nobgName := ArtifactName(safe, SuffixNobg, ts, "png")
		if _, err = p.generated.Write(ctx, nobgName, nobg); err == nil {
			result.NobgFilename = nobgName
			stylizeInput = stages.Image{Data: nobg, MIME: transfer.SniffMIME(nobg)}
			log.Info().Str("file", nobgName).Msg("pipeline: background removed")
		}
	}
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: background removal failed, continuing with original")
		metrics.StageFallbacks.WithLabelValues(string(domain.StageBackgroundRemoval)).Inc()
		result.Fallbacks = append(result.Fallbacks, domain.StageBackgroundRemoval)
	}

	template := req.PromptStylize
	if template == "" {
		template = p.storedPrompts(ctx).Stylize
	}
	styled, err := p.editor.Stylize(ctx, stages.StylizeInput{Image: stylizeInput, Description: req.Description, Template: template})
	if err != nil || len(styled) == 0 {
		log.Warn().Err(err).Msg("pipeline: stylization failed, keeping previous image")
		metrics.StageFallbacks.WithLabelValues(string(domain.StageStylize)).Inc()
		result.Fallbacks = append(result.Fallbacks, domain.StageStylize)
		styled = stylizeInput.Data
	}

	if err := ctx.Err(); err != nil {
		metrics.PipelineRuns.WithLabelValues("image", "abandoned").Inc()
		return nil, err
	}
	if _, err := p.generated.Write(ctx, finalName, styled); err != nil {
		metrics.PipelineRuns.WithLabelValues("image", "failed").Inc()
		return nil, fmt.Errorf("pipeline: store final image: %w", err)
	}

	if err := p.history.Append(ctx, domain.GenerationRecord{
		Timestamp:     ts,
		Brand:         req.Brand,
		PerfumeName:   req.Name,
		Description:   req.Description,
		OriginalImage: src.name,
		FinalImage:    finalName,
		Status:        domain.GenerationCompleted,
	}); err != nil {
		metrics.PipelineRuns.WithLabelValues("image", "failed").Inc()
		return nil, err
	}
	if req.ProductID != 0 && p.products != nil {
		if err := p.products.UpdateStyledImagePath(ctx, req.ProductID, finalName); err != nil {
			log.Error().Err(err).Int64("product_id", req.ProductID).Msg("pipeline: update styled image path")
		}
	}

	metrics.PipelineRuns.WithLabelValues("image", "completed").Inc()
	log.Info().Str("file", finalName).Int("fallbacks", len(result.Fallbacks)).Msg("pipeline: generation completed")
	result.FinalFilename = finalName
	result.ImageURL = "/images/" + finalName
	return result, nil
}

// acquireSource resolves the photo from a local reference, a URL, or the
// finder, in that order. Without download the URL is only checked for
// presence, so an unconfigured pipeline stays offline.
func (p *Pipeline) acquireSource(ctx context.Context, req domain.GenerationRequest, safe, ts string, download bool) (*source, error) {
	if req.ImagePath != "" {
		data, err := p.sources.Read(req.ImagePath)
		if err == nil {
			return &source{name: req.ImagePath, data: data}, nil
		}
		p.logger.Warn().Err(err).Str("image_path", req.ImagePath).Msg("pipeline: local source unavailable")
	}

	imageURL := req.ImageURL
	if !download {
		if imageURL == "" {
			return nil, fmt.Errorf("%w: provide an image url or a stored image", domain.ErrNoSourceImage)
		}
		return &source{}, nil
	}
	if imageURL == "" {
		found, err := p.finder.Find(ctx, req.Brand, req.Name)
		if err != nil {
			p.logger.Warn().Err(err).Msg("pipeline: source lookup failed")
		}
		imageURL = strings.TrimSpace(found)
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: provide an image url or a stored image", domain.ErrNoSourceImage)
	}

	data, err := p.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: download failed: %w", domain.ErrNoSourceImage, err)
	}
	name, err := p.sources.Write(ctx, ArtifactName(safe, SuffixOriginal, ts, "jpg"), data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: store source image: %w", err)
	}
	return &source{name: name, data: data}, nil
}

// CompleteGeneration marks a pending history entry as done out of band.
func (p *Pipeline) CompleteGeneration(ctx context.Context, timestamp, finalImagePath string) error {
	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", domain.ErrInvalidRequest)
	}
	return p.history.Complete(ctx, timestamp, strings.TrimSpace(finalImagePath))
}

// SaveMainImageRequest asks to download a catalog photo for a product.
type SaveMainImageRequest struct {
	ImageURL  string
	ProductID int64
	Brand     string
	Name      string
}

// SaveMainImage downloads the photo into the source folder and records it
// as the product's main image.
func (p *Pipeline) SaveMainImage(ctx context.Context, req SaveMainImageRequest) (string, error) {
	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL == "" || req.ProductID == 0 {
		return "", fmt.Errorf("%w: image url and product id are required", domain.ErrInvalidRequest)
	}
	if p.products == nil {
		return "", &domain.ConfigurationError{Stage: domain.StageDownload, Setting: "DATABASE_URL"}
	}
	data, err := p.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}
	name := ArtifactName(SafeName(req.Brand, req.Name), SuffixMain, Timestamp(p.now()), "jpg")
	if name, err = p.sources.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("pipeline: store main image: %w", err)
	}
	if err := p.products.UpdateImagePath(ctx, req.ProductID, name); err != nil {
		return "", err
	}
	p.logger.Info().Int64("product_id", req.ProductID).Str("file", name).Msg("pipeline: main image saved")
	return name, nil
}

func trimRequest(req domain.GenerationRequest) domain.GenerationRequest {
	req.Brand = strings.TrimSpace(req.Brand)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.ImagePath = strings.TrimSpace(req.ImagePath)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.PromptBackground = strings.TrimSpace(req.PromptBackground)
	req.PromptStylize = strings.TrimSpace(req.PromptStylize)
	return req
}
