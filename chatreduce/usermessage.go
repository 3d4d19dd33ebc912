package chatreduce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/upload"
)

// SendInput is the content of a Send call: either plain text, a structured
// object, or both, plus any files to attach.
type SendInput struct {
	// Content is either a string (rendered as a TextPart) or any other
	// JSON-compatible value (rendered as an ObjectPart).
	Content any

	// ContentTypeName names the structured Content's type for ObjectPart
	// rendering; defaults to "object" when Content is non-string and this is
	// empty, mirroring §4.E.1.
	ContentTypeName string

	// Files are already-resolved references; FilesToUpload are raw bytes
	// the builder uploads first via §4.D before building parts.
	Files         []upload.FileReference
	FilesToUpload []upload.FileSpec
}

// buildUserMessage implements §4.E.1: file parts first (vision-friendly
// ordering), then at most one content part. Building fails only when raw
// files are supplied without an upload callback or their upload fails.
func buildUserMessage(ctx context.Context, in SendInput, uploadOpts *upload.Options) (chatmodel.UIMessage, error) {
	files := in.Files
	if len(in.FilesToUpload) > 0 {
		if uploadOpts == nil || uploadOpts.RequestUploadURLs == nil {
			return chatmodel.UIMessage{}, fmt.Errorf("chatreduce: message carries raw files but no upload callback was configured")
		}
		uploaded, err := upload.UploadFiles(ctx, in.FilesToUpload, *uploadOpts)
		if err != nil {
			return chatmodel.UIMessage{}, fmt.Errorf("chatreduce: uploading message files: %w", err)
		}
		files = append(append([]upload.FileReference{}, files...), uploaded...)
	}

	parts := make([]chatmodel.UIMessagePart, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, chatmodel.FilePart{
			ID:        f.ID,
			MediaType: f.MediaType,
			URL:       f.URL,
			Filename:  f.Filename,
			Size:      f.Size,
		})
	}

	switch content := in.Content.(type) {
	case nil:
		// No content part; files-only message is legal.
	case string:
		if content != "" {
			parts = append(parts, chatmodel.TextPart{Text: content, Status: chatmodel.PartStatusDone})
		}
	default:
		typeName := in.ContentTypeName
		if typeName == "" {
			typeName = "object"
		}
		parts = append(parts, chatmodel.ObjectPart{
			TypeName: typeName,
			Object:   content,
			Status:   chatmodel.PartStatusDone,
		})
	}

	return chatmodel.UIMessage{
		ID:        uuid.NewString(),
		Role:      chatmodel.RoleUser,
		Parts:     parts,
		Status:    chatmodel.MessageStatusDone,
		CreatedAt: time.Now(),
	}, nil
}
