package gcd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// size of each read from the response body, memory use does not grow
// with the size of the dump.
const chunkSize = 5000 * 1024

// Outcome is either Saved or Notice.
type Outcome interface {
	isOutcome()
}

// Saved means the dump was written to Path.
type Saved struct {
	Path  string
	Bytes int64
}

// Notice is the message the portal rendered instead of sending the dump
// (license not accepted, quota exceeded, session expired, ...).
type Notice struct {
	Text string
}

func (Saved) isOutcome()  {}
func (Notice) isOutcome() {}

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// DumpFilename derives the output file name from the dump identity:
// "May 1, 2024, 2:15 a.m." becomes "gcd-dump-May_1,_2024,_2:15_a.m..zip".
func DumpFilename(identity string) string {
	return fmt.Sprintf("gcd-dump-%s.zip", filenameReplacer.Replace(identity))
}

// Finalizer turns the response to the dump request into an Outcome.
type Finalizer struct {
	// directory the dump is written to
	Dir            string
	NoticeSelector string
}

func isHtml(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}

// Finalize consumes the payload body, it does not close it.
//
// a write failure leaves the partial file on disk so it can be inspected.
func (f Finalizer) Finalize(ctx context.Context, payload *Payload, identity string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "Finalizer:Finalize")
	defer span.End()

	if isHtml(payload.ContentType) {
		doc, err := goquery.NewDocumentFromReader(payload.Body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read notice page")
			return nil, fmt.Errorf("%w: read notice page: %w", ErrTransport, err)
		}
		text, err := ExtractNotice(doc, f.NoticeSelector)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to find notice")
			return nil, err
		}
		span.SetAttributes(attribute.String("gcd.notice", text))
		return Notice{Text: text}, nil
	}

	saved, err := f.save(ctx, payload.Body, identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save dump")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("gcd.path", saved.Path),
		attribute.Int64("gcd.bytes", saved.Bytes),
	)
	return saved, nil
}

func (f Finalizer) save(ctx context.Context, body io.Reader, identity string) (Saved, error) {
	path := filepath.Join(f.Dir, DumpFilename(identity))

	file, err := os.Create(path)
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer file.Close()

	buffer := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			_, err := file.Write(buffer[:n])
			if err != nil {
				return Saved{}, fmt.Errorf("%w: write %s: %w", ErrStorage, path, err)
			}
			written += int64(n)
			downloadedBytes.Add(ctx, int64(n))
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return Saved{}, fmt.Errorf("%w: read dump after %d bytes: %w", ErrTransport, written, readErr)
		}
	}

	err = file.Sync()
	if err != nil {
		return Saved{}, fmt.Errorf("%w: sync %s: %w", ErrStorage, path, err)
	}
	err = file.Close()
	if err != nil {
		return Saved{}, fmt.Errorf("%w: close %s: %w", ErrStorage, path, err)
	}

	return Saved{Path: path, Bytes: written}, nil
}
