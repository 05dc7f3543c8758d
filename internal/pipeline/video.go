package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/metrics"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/storage"
	"perfumevisual/internal/transfer"
)

// VideoRequest asks for a clip of a previously generated bottle.
type VideoRequest struct {
	ImageFilename string
	Brand         string
	Name          string
	Description   string
	ProductID     int64
}

// VideoResult describes a rendered clip.
type VideoResult struct {
	VideoURL      string `json:"video_url"`
	VideoFilename string `json:"video_filename"`
	Brand         string `json:"brand"`
	PerfumeName   string `json:"perfume_name"`
	Concept       string `json:"concept"`
	Prompt        string `json:"prompt"`
	NobgImage     string `json:"nobg_image"`
}

// GenerateVideo writes a concept with the text model, animates the
// background-removed bottle and stores the clip. Every failure is returned.
func (p *Pipeline) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	req.ImageFilename = strings.TrimSpace(req.ImageFilename)
	req.Brand = strings.TrimSpace(req.Brand)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Brand == "" || req.Name == "" || req.Description == "" {
		return nil, fmt.Errorf("%w: brand, perfume name and description are required", domain.ErrInvalidRequest)
	}
	if req.ImageFilename == "" {
		return nil, fmt.Errorf("%w: image filename is required", domain.ErrInvalidRequest)
	}
	if !p.video.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: domain.StageVideo, Setting: "REPLICATE_API_TOKEN"}
	}

	nobgName, err := p.resolveNobg(req.ImageFilename)
	if err != nil {
		return nil, err
	}
	data, err := p.generated.Read(nobgName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, nobgName)
	}
	log := p.logger.With().Str("brand", req.Brand).Str("perfume", req.Name).Str("nobg", nobgName).Logger()

	concept, err := p.video.Concept(ctx, req.Brand, req.Name, req.Description)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("video", "failed").Inc()
		return nil, err
	}
	clip, err := p.video.Render(ctx, stages.Image{Data: data, MIME: transfer.SniffMIME(data)}, concept.Prompt)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("video", "failed").Inc()
		return nil, err
	}

	name := ArtifactName(SafeName(req.Brand, req.Name), SuffixSeedance, Timestamp(p.now()), "mp4")
	if name, err = p.videos.Write(ctx, name, clip); err != nil {
		metrics.PipelineRuns.WithLabelValues("video", "failed").Inc()
		return nil, fmt.Errorf("pipeline: store video: %w", err)
	}
	if req.ProductID != 0 && p.products != nil {
		if err := p.products.UpdateVideoPath(ctx, req.ProductID, name); err != nil {
			log.Error().Err(err).Int64("product_id", req.ProductID).Msg("pipeline: update video path")
		}
	}

	metrics.PipelineRuns.WithLabelValues("video", "completed").Inc()
	log.Info().Str("file", name).Msg("pipeline: video generated")
	return &VideoResult{
		VideoURL:      "/videos/" + name,
		VideoFilename: name,
		Brand:         req.Brand,
		PerfumeName:   req.Name,
		Concept:       concept.Concept,
		Prompt:        concept.Prompt,
		NobgImage:     nobgName,
	}, nil
}

// resolveNobg finds the background-removed sibling of filename, or else the
// newest background-removed artifact of any product.
func (p *Pipeline) resolveNobg(filename string) (string, error) {
	if name := NobgNameFor(filename); p.generated.Exists(name) {
		return name, nil
	}
	latest, err := p.generated.LatestMatching("*" + SuffixNobg + "*.png")
	if errors.Is(err, storage.ErrNotExist) {
		return "", fmt.Errorf("%w: no background-removed image, generate the image first", domain.ErrArtifactNotFound)
	}
	if err != nil {
		return "", err
	}
	p.logger.Warn().Str("requested", filename).Str("using", latest).Msg("pipeline: exact nobg artifact missing, using newest")
	return latest, nil
}
