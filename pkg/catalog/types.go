package catalog

import (
	"encoding/json"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ProxyJob is the payload of a media-proxy generation item: the asset to
// process and the rendition profile to apply.
type ProxyJob struct {
	AssetId string `json:"asset_id"`
	Path    string `json:"path"`
	Profile string `json:"profile,omitempty"`
}

// ProxyRendition is one generated proxy or thumbnail.
type ProxyRendition struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ProxyResult is the result of a media-proxy generation item: the generated
// renditions and any metadata extracted from the source.
type ProxyResult struct {
	AssetId    string           `json:"asset_id"`
	Renditions []ProxyRendition `json:"renditions,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	ElapsedMs  int64            `json:"elapsed_ms,omitempty"`
}

// Asset is a catalog row holding the latest proxy state for an asset.
type Asset struct {
	AssetId    string     `json:"asset_id"`
	Renditions any        `json:"renditions,omitempty"`
	Metadata   any        `json:"metadata,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

type AssetName string

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (a Asset) String() string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (a *Asset) Scan(row pg.Row) error {
	return row.Scan(&a.AssetId, &a.Renditions, &a.Metadata, &a.UpdatedAt)
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

func (r ProxyResult) Insert(bind *pg.Bind) (string, error) {
	if r.AssetId == "" {
		return "", httpresponse.ErrBadRequest.With("missing asset_id")
	} else {
		bind.Set("asset_id", r.AssetId)
	}
	if data, err := json.Marshal(r.Renditions); err != nil {
		return "", err
	} else {
		bind.Set("renditions", string(data))
	}
	if data, err := json.Marshal(r.Metadata); err != nil {
		return "", err
	} else {
		bind.Set("metadata", string(data))
	}
	return bind.Replace("${catalog.asset_upsert}"), nil
}

func (r ProxyResult) Update(bind *pg.Bind) error {
	return httpresponse.ErrNotImplemented.With("assets are upserted, not patched")
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (a AssetName) Select(bind *pg.Bind, op pg.Op) (string, error) {
	bind.Set("asset_id", string(a))
	switch op {
	case pg.Get:
		return bind.Replace("${catalog.asset_get}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported AssetName operation %q", op)
	}
}
