package adapter

import (
	"context"
	"time"
)

type Format string

const (
	FormatPrint   Format = "print"   // A4 sheet for the office printer
	FormatDisplay Format = "display" // compact card for phone screens
)

// RenderInput holds resolved field values; the renderer never reads the store.
type RenderInput struct {
	VoucherID   string
	Serial      string
	HolderName  string
	MemberID    string
	Association string
	Amount      int64
	ValueType   string
	Template    string
	ExpiresAt   *time.Time
	IssuedAt    time.Time
	Payload     string // signed, scannable verification payload
}

type Artifact struct {
	VoucherID   string
	Format      Format
	ContentType string
	FileName    string
	Data        []byte
}

// ArtifactRenderer turns a voucher plus template into a printable/displayable document.
type ArtifactRenderer interface {
	Render(ctx context.Context, in RenderInput, format Format) (*Artifact, error)
}

// ArtifactSink receives artifacts produced by a batch run.
type ArtifactSink interface {
	Put(ctx context.Context, a *Artifact) error
}
