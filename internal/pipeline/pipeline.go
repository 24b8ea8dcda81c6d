// Package pipeline turns an uploaded receipt image into a pending Document.
//
// A run checks the image, transcribes it, classifies the text (concurrently
// with parsing the user's note when one is given), assigns sub-tags, extracts
// type-specific structured fields and assembles the Document. Required stages
// abort the run with a *StageError; best-effort stages degrade to empty values.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/metrics"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/prompts"
)

// Input is one upload.
type Input struct {
	ImagePath string
	Text      string
	AudioPath string
}

// Recognition holds the transcribed document text.
type Recognition struct {
	Markdown string
}

// Classification is the merged category and tag decision.
type Classification struct {
	ProfessionalCategory model.DocumentType
	UserCategory         model.UserCategory
	Reasoning            string
	Tags                 []string
}

// Intent is the parsed meaning of the user's accompanying note.
type Intent struct {
	Analysis       string
	KeyInformation string
	Explicit       bool
}

// Result is a successful run.
type Result struct {
	Document       *model.Document
	Intent         *Intent
	Recognition    Recognition
	Classification Classification
	// Degraded lists best-effort stages that failed and were replaced by defaults.
	Degraded []Stage
}

// Pipeline runs uploads against a model gateway.
type Pipeline struct {
	gateway llm.Gateway
	prompts *prompts.Builder
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a pipeline.
func New(gateway llm.Gateway, builder *prompts.Builder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		gateway: gateway,
		prompts: builder,
		logger:  logger,
		now:     time.Now,
	}
}

type typeDecision struct {
	reasoning string
	docType   model.DocumentType
	category  model.UserCategory
	known     bool
}

type tagDecision struct {
	reasoning string
	tags      []string
}

// Run processes one upload for user. An image that is not a receipt yields an
// error matching ErrInvalidImage; a required stage failure yields a *StageError.
func (p *Pipeline) Run(ctx context.Context, user *model.User, in Input) (*Result, error) {
	result, err := p.run(ctx, user, in)
	switch {
	case errors.Is(err, ErrInvalidImage):
		metrics.PipelineRuns.WithLabelValues(metrics.OutcomeInvalid).Inc()
	case err != nil:
		metrics.PipelineRuns.WithLabelValues(metrics.OutcomeError).Inc()
		var se *StageError
		if errors.As(err, &se) {
			metrics.StageFailures.WithLabelValues(string(se.Stage), metrics.OutcomeFatal).Inc()
		}
	case len(result.Degraded) > 0:
		metrics.PipelineRuns.WithLabelValues(metrics.OutcomeDegraded).Inc()
	default:
		metrics.PipelineRuns.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, user *model.User, in Input) (*Result, error) {
	logger := p.logger.With("user_id", user.ID, "image", in.ImagePath)
	logger.Info("Processing upload", "has_text", in.Text != "", "has_audio", in.AudioPath != "")

	text := in.Text
	if in.AudioPath != "" && text == "" {
		transcript, err := p.gateway.TranscribeAudio(ctx, in.AudioPath)
		if err != nil {
			return nil, stageErr(StageTranscribe, err)
		}
		text = strings.TrimSpace(transcript)
		logger.Debug("Transcribed audio note", "length", len(text))
	}

	if err := p.checkRelevance(ctx, in.ImagePath); err != nil {
		return nil, err
	}

	markdown, err := p.recognize(ctx, in.ImagePath)
	if err != nil {
		return nil, err
	}

	result := &Result{Recognition: Recognition{Markdown: markdown}}

	decision, intent, err := p.classifyWithIntent(ctx, markdown, text, result)
	if err != nil {
		return nil, err
	}
	result.Intent = intent

	tags := p.assignTags(ctx, user, markdown, decision.category, intent, result)

	fields, err := p.structure(ctx, markdown, decision)
	if err != nil {
		return nil, err
	}

	result.Classification = Classification{
		ProfessionalCategory: decision.docType,
		UserCategory:         decision.category,
		Reasoning:            mergeReasoning(decision.reasoning, tags.reasoning),
	}

	doc := &model.Document{
		ID:               model.NewDocumentID(),
		UserID:           user.ID,
		UploadTime:       p.now(),
		Type:             decision.docType,
		SourceImage:      in.ImagePath,
		RecognizedText:   markdown,
		StructuredFields: fields,
		UserCategory:     decision.category,
		Amount:           ExtractAmount(fields),
		IssuedDate:       ExtractIssuedDate(decision.docType, fields),
		Status:           model.StatusPending,
		TypeReasoning:    decision.reasoning,
		TagReasoning:     tags.reasoning,
	}
	doc.SetTags(tags.tags)
	result.Document = doc
	result.Classification.Tags = slices.Clone(doc.Tags)

	logger.Info("Upload processed",
		"document_id", doc.ID,
		"type", doc.Type,
		"user_category", doc.UserCategory,
		"tags", len(doc.Tags),
		"degraded", len(result.Degraded))
	return result, nil
}

func (p *Pipeline) checkRelevance(ctx context.Context, imagePath string) error {
	prompt, err := p.prompts.Check()
	if err != nil {
		return stageErr(StageRelevance, err)
	}
	reply, err := p.gateway.CompleteVision(ctx, imagePath, prompt, llm.FormatJSON)
	if err != nil {
		return stageErr(StageRelevance, err)
	}

	data := llm.ParseJSON(reply)
	if !llm.Bool(data, "is_document", false) {
		reason := llm.String(data, "reason", "")
		p.logger.Info("Image rejected as not a receipt", "image", imagePath, "reason", reason)
		return &InvalidImageError{Reason: reason}
	}
	return nil
}

func (p *Pipeline) recognize(ctx context.Context, imagePath string) (string, error) {
	prompt, err := p.prompts.Recognize("")
	if err != nil {
		return "", stageErr(StageRecognition, err)
	}
	reply, err := p.gateway.CompleteVision(ctx, imagePath, prompt, llm.FormatText)
	if err != nil {
		return "", stageErr(StageRecognition, err)
	}
	markdown := llm.ExtractMarkdown(reply)
	if markdown == "" {
		return "", stageErr(StageRecognition, ErrUnparseable)
	}
	return markdown, nil
}

// classifyWithIntent runs classification, concurrently with intent parsing when
// the user supplied text. Intent failures are absorbed.
func (p *Pipeline) classifyWithIntent(ctx context.Context, markdown, text string, result *Result) (typeDecision, *Intent, error) {
	if text == "" {
		decision, err := p.classify(ctx, markdown)
		return decision, nil, err
	}

	var (
		decision  typeDecision
		intent    *Intent
		intentErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decision, err = p.classify(gctx, markdown)
		return err
	})
	g.Go(func() error {
		intent, intentErr = p.parseIntent(gctx, text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return typeDecision{}, nil, err
	}

	if intentErr != nil {
		p.degrade(result, StageIntent, intentErr)
		intent = nil
	}
	return decision, intent, nil
}

func (p *Pipeline) classify(ctx context.Context, markdown string) (typeDecision, error) {
	prompt, err := p.prompts.Classify(markdown)
	if err != nil {
		return typeDecision{}, stageErr(StageClassification, err)
	}
	reply, err := p.gateway.CompleteText(ctx, llm.UserMessage(prompt), llm.FormatJSON)
	if err != nil {
		return typeDecision{}, stageErr(StageClassification, err)
	}

	data := llm.ParseJSON(reply)
	if len(data) == 0 {
		return typeDecision{}, stageErr(StageClassification, ErrUnparseable)
	}

	docType, known := model.ParseDocumentType(llm.String(data, "professional_category", ""))
	category, _ := model.ParseUserCategory(llm.String(data, "user_category", ""))
	return typeDecision{
		docType:   docType,
		known:     known,
		category:  category,
		reasoning: llm.String(data, "reasoning", ""),
	}, nil
}

func (p *Pipeline) parseIntent(ctx context.Context, text string) (*Intent, error) {
	prompt, err := p.prompts.Intent(text)
	if err != nil {
		return nil, err
	}
	reply, err := p.gateway.CompleteText(ctx, llm.UserMessage(prompt), llm.FormatJSON)
	if err != nil {
		return nil, err
	}

	data := llm.ParseJSON(reply)
	return &Intent{
		Analysis:       llm.String(data, "analysis", ""),
		KeyInformation: llm.String(data, "information_extraction", ""),
		Explicit:       llm.Bool(data, "has_explicit_classification", false),
	}, nil
}

func (p *Pipeline) assignTags(ctx context.Context, user *model.User, markdown string, category model.UserCategory, intent *Intent, result *Result) tagDecision {
	data := prompts.TagData{
		Profile:  user.Profile.Summary(),
		Content:  markdown,
		Category: category,
		Rules:    user.Rules,
		Tags:     user.Categories.Tags(category),
	}
	if intent != nil && intent.Explicit {
		data.Intent = intent.KeyInformation
	}

	decision, err := p.requestTags(ctx, data)
	if err != nil {
		p.degrade(result, StageTags, err)
		return tagDecision{reasoning: fmt.Sprintf("子标签添加失败，使用默认值: %v", err)}
	}
	return decision
}

func (p *Pipeline) requestTags(ctx context.Context, data prompts.TagData) (tagDecision, error) {
	prompt, err := p.prompts.Tags(data)
	if err != nil {
		return tagDecision{}, err
	}
	reply, err := p.gateway.CompleteText(ctx, llm.UserMessage(prompt), llm.FormatJSON)
	if err != nil {
		return tagDecision{}, err
	}

	parsed := llm.ParseJSON(reply)
	if len(parsed) == 0 {
		return tagDecision{}, ErrUnparseable
	}
	return tagDecision{
		tags:      llm.StringSlice(parsed, "tags"),
		reasoning: llm.String(parsed, "reasoning", ""),
	}, nil
}

func (p *Pipeline) structure(ctx context.Context, markdown string, decision typeDecision) (map[string]any, error) {
	var schema string
	if decision.known {
		if s, ok := model.SchemaFor(decision.docType); ok {
			schema = s.JSON()
		}
	}

	prompt, err := p.prompts.Structure(markdown, schema)
	if err != nil {
		return nil, stageErr(StageStructure, err)
	}
	reply, err := p.gateway.CompleteText(ctx, llm.UserMessage(prompt), llm.FormatJSON)
	if err != nil {
		return nil, stageErr(StageStructure, err)
	}

	data := llm.ParseJSON(reply)
	if len(data) == 0 {
		return nil, stageErr(StageStructure, ErrUnparseable)
	}
	fields := llm.Map(data, "structured_data")
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func (p *Pipeline) degrade(result *Result, stage Stage, err error) {
	result.Degraded = append(result.Degraded, stage)
	metrics.StageFailures.WithLabelValues(string(stage), metrics.OutcomeDegraded).Inc()
	p.logger.Warn("Best-effort stage failed, continuing with defaults", "stage", stage, "error", err)
}

func mergeReasoning(typeReasoning, tagReasoning string) string {
	switch {
	case typeReasoning == "":
		return tagReasoning
	case tagReasoning == "":
		return typeReasoning
	default:
		return typeReasoning + "\n\n子标签推理：" + tagReasoning
	}
}
