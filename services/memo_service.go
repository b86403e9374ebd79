package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"listings-api/chatlog"
	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
	"listings-api/repositories"
)

const excerptRunes = 80

// MemoService define la interfaz para cargar mensajes de chat como notas de los avisos
type MemoService interface {
	// Import parsea un export de chat y pisa las notas de los avisos que
	// mencionan sus mensajes. Gana el último mensaje de cada aviso
	Import(ctx context.Context, filename string, r io.Reader, dryRun bool) (*dto.MemoImportReport, error)
}

type memoService struct {
	listings repositories.ListingRepository
	notifier *ChangeNotifier
	n        *normalize.Normalizer
	opts     chatlog.Options
	logger   *zap.Logger
}

func NewMemoService(listings repositories.ListingRepository, notifier *ChangeNotifier, n *normalize.Normalizer, logger *zap.Logger) MemoService {
	return &memoService{
		listings: listings,
		notifier: notifier,
		n:        n,
		opts:     chatlog.DefaultOptions(),
		logger:   logger,
	}
}

func (s *memoService) Import(ctx context.Context, filename string, r io.Reader, dryRun bool) (*dto.MemoImportReport, error) {
	// 1. Parsear el export (los mensajes vienen del más viejo al más nuevo)
	messages, err := chatlog.Parse(filename, r)
	if err != nil {
		return nil, validationErrorf("cannot read chat log: %v", err)
	}
	if len(messages) == 0 {
		return nil, validationErrorf("the chat log contains no messages")
	}

	// 2. Indexar el inventario; el matcher tiene su propia copia, así los
	// cambios de abajo no alteran los matches siguientes
	listings, err := s.listings.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	snapshot := make([]domain.Listing, len(listings))
	copy(snapshot, listings)
	matcher := chatlog.NewMatcher(s.n, snapshot, s.opts)

	byID := make(map[uint]*domain.Listing, len(listings))
	for i := range listings {
		byID[listings[i].ID] = &listings[i]
	}

	// 3. Matchear y aplicar del más viejo al más nuevo
	report := &dto.MemoImportReport{
		DryRun:          dryRun,
		Messages:        len(messages),
		Matches:         []dto.MemoMatch{},
		Unmatched:       []dto.UnmatchedMessage{},
		UpdatedListings: []uint{},
	}
	touched := make(map[uint]*domain.Listing)
	for _, msg := range messages {
		res := matcher.Match(msg.Text)
		if !res.Matched {
			report.Unmatched = append(report.Unmatched, dto.UnmatchedMessage{
				At:      msg.At,
				Author:  msg.Author,
				Reason:  res.Reason,
				Excerpt: excerpt(msg.Text),
			})
			continue
		}

		listing := byID[res.ListingID]
		applyMessage(listing, msg, res.Facts)
		touched[listing.ID] = listing
		report.Matches = append(report.Matches, dto.MemoMatch{
			ListingID: listing.ID,
			Method:    res.Method,
			Score:     res.Score,
			At:        msg.At,
			Excerpt:   excerpt(msg.Text),
		})
	}
	report.Matched = len(report.Matches)

	updates := make([]*domain.Listing, 0, len(touched))
	for id, l := range touched {
		report.UpdatedListings = append(report.UpdatedListings, id)
		updates = append(updates, l)
	}
	sort.Slice(report.UpdatedListings, func(i, j int) bool { return report.UpdatedListings[i] < report.UpdatedListings[j] })
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })

	if dryRun || len(updates) == 0 {
		return report, nil
	}

	// 4. Confirmar todos los cambios juntos
	if err := s.listings.UpdateMany(ctx, updates); err != nil {
		return nil, fmt.Errorf("save memos: %w", err)
	}
	s.logger.Info("chat log memos applied",
		zap.String("file", filename),
		zap.Int("messages", report.Messages),
		zap.Int("matched", report.Matched),
		zap.Int("listings", len(updates)))
	s.notifier.Changed(ctx, domain.EventMemosMatched, report.UpdatedListings...)
	return report, nil
}

// applyMessage pisa la nota con el mensaje y copia los datos que el
// mensaje informa
func applyMessage(l *domain.Listing, msg chatlog.Message, f chatlog.Facts) {
	at := msg.At
	l.Note = strings.TrimSpace(msg.Text)
	l.NoteUpdatedAt = &at
	if f.HasAmenities {
		l.Amenities = f.Amenities
	}
	if f.Price != nil {
		f.Price.Apply(l)
	}
	if f.HasArea {
		l.ExclusiveArea = f.Area
	}
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes]) + "…"
}
