package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const titleNameLimit = 50

type UploadResult struct {
	Msg           string `json:"msg"`
	ChatID        int64  `json:"chat_id"`
	FileID        int64  `json:"file_id"`
	ExtractedText any    `json:"extracted_text"`
}

// pdfText is the stored form of a PDF's extracted text.
type pdfText struct {
	Pages []string `json:"pages"`
}

// DocumentService turns uploaded files into chats seeded with their text.
type DocumentService struct {
	files     domain.FileStore
	extractor domain.TextExtractor
	now       func() time.Time
}

func NewDocumentService(files domain.FileStore, extractor domain.TextExtractor) *DocumentService {
	return &DocumentService{files: files, extractor: extractor, now: time.Now}
}

func (s *DocumentService) UploadPDF(ctx context.Context, user *domain.User, name string, data []byte) (UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return UploadResult{}, domain.Invalid("File is not a PDF.")
	}

	pages, err := s.extractor.ExtractPDF(ctx, data)
	if err != nil {
		return UploadResult{}, extractionError(ctx, name, err)
	}
	doc := pdfText{Pages: pages}
	stored, err := json.Marshal(doc)
	if err != nil {
		return UploadResult{}, fmt.Errorf("encode pdf text: %w", err)
	}

	chatID, fileID, err := s.store(ctx, user, "PDF: "+clipName(name), name, "pdf", strings.Join(pages, "\n"), string(stored))
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Msg: "PDF uploaded and stored with chat", ChatID: chatID, FileID: fileID, ExtractedText: doc}, nil
}

func (s *DocumentService) UploadImage(ctx context.Context, user *domain.User, name, mimeType string, data []byte) (UploadResult, error) {
	text, err := s.extractor.ExtractImage(ctx, data, mimeType)
	if err != nil {
		return UploadResult{}, extractionError(ctx, name, err)
	}

	chatID, fileID, err := s.store(ctx, user, "Image: "+clipName(name), name, "image", text, text)
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Msg: "Image uploaded and stored with chat", ChatID: chatID, FileID: fileID, ExtractedText: text}, nil
}

// store creates the chat holding text and records the upload atomically.
func (s *DocumentService) store(ctx context.Context, user *domain.User, title, name, fileType, text, extracted string) (int64, int64, error) {
	now := s.now().UTC()
	chat := &domain.Chat{UserID: user.ID, Title: title, Timestamp: now}
	first := &domain.StoredMessage{Role: domain.UserRole, Content: text, CreatedAt: now}
	file := &domain.UploadedFile{
		UserID:        user.ID,
		FileName:      name,
		FileType:      fileType,
		ExtractedText: extracted,
		UploadedAt:    now,
	}
	if err := s.files.SaveUpload(ctx, chat, first, file); err != nil {
		return 0, 0, fmt.Errorf("store upload %s: %w", name, err)
	}

	log.WithCtx(ctx).Info("Upload stored", zap.Int64("chat_id", chat.ID), zap.String("type", fileType))
	return chat.ID, file.ID, nil
}

// extractionError reports unreadable uploads to the caller and keeps
// backend failures internal.
func extractionError(ctx context.Context, name string, err error) error {
	if errors.Is(err, domain.ErrUnreadableDocument) {
		log.WithCtx(ctx).Warn("Unreadable upload", zap.String("file", name), zap.Error(err))
		return domain.Invalid(err.Error())
	}
	return fmt.Errorf("extract text from %s: %w", name, err)
}

// clipName keeps the first 50 characters of a file name.
func clipName(name string) string {
	return truncate(name, titleNameLimit)
}
