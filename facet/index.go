package facet

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"facetcore/codec"
	"facetcore/errs"
	"facetcore/facettree"
	"facetcore/kvstore"
	"facetcore/mirror"
)

// Index is a faceted value index over a fixed set of named fields. Field
// ids are assigned once, in Open, by sorting field names: callers refer to
// fields by name everywhere else.
type Index struct {
	db      *kvstore.DB
	cfg     Config
	treeCfg facettree.Config

	fids              map[string]uint16
	disabledTypoWords map[string]bool
	logger            *zap.SugaredLogger
}

// Open creates or opens an index backed by cfg.Dir (or an in-memory store
// if cfg.Dir is empty).
func Open(cfg Config) (*Index, error) {
	if cfg.Tree == (facettree.Config{}) {
		cfg.Tree = facettree.DefaultConfig()
	}

	var db *kvstore.DB
	var err error
	if cfg.Dir == "" {
		db, err = kvstore.OpenMem()
	} else {
		db, err = kvstore.Open(cfg.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("facet: open index: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	names := make([]string, 0, len(cfg.Fields))
	for name := range cfg.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	fids := make(map[string]uint16, len(names))
	for i, name := range names {
		fids[name] = uint16(i + 1)
	}

	disabled := make(map[string]bool, len(cfg.DisabledTypoWords))
	for _, w := range cfg.DisabledTypoWords {
		disabled[mirror.Normalize(w)] = true
	}

	return &Index{
		db:                db,
		cfg:               cfg,
		treeCfg:           cfg.Tree,
		fids:              fids,
		disabledTypoWords: disabled,
		logger:            logger,
	}, nil
}

// Close releases the backing store and flushes logs.
func (ix *Index) Close() error {
	_ = ix.logger.Sync()
	return ix.db.Close()
}

func (ix *Index) fieldConfig(name string) (uint16, FieldConfig, bool) {
	fid, ok := ix.fids[name]
	if !ok {
		return 0, FieldConfig{}, false
	}
	return fid, ix.cfg.Fields[name], true
}

// checkFilterable resolves name to a filterable field's id and config, or
// a KindNotFilterable error.
func (ix *Index) checkFilterable(name string) (uint16, FieldConfig, error) {
	fid, fc, ok := ix.fieldConfig(name)
	if !ok || !fc.Filterable {
		return 0, FieldConfig{}, errs.New(errs.KindNotFilterable, fmt.Sprintf("field %q is not filterable", name))
	}
	return fid, fc, nil
}

// checkSearchable resolves name for FacetSearch, applying the error
// precedence search-disabled > not-filterable > wrong-type: an
// index-wide disable always wins, even for a field that doesn't exist.
func (ix *Index) checkSearchable(name string) (uint16, FieldConfig, error) {
	if ix.cfg.SearchDisabled {
		return 0, FieldConfig{}, errs.New(errs.KindSearchDisabled, "facet search is disabled for this index")
	}
	fid, fc, ok := ix.fieldConfig(name)
	if !ok || !fc.Filterable || !fc.FacetSearch {
		return 0, FieldConfig{}, errs.New(errs.KindNotFilterable, fmt.Sprintf("field %q is not configured for facet search", name))
	}
	if fc.ValueType != codec.TString {
		return 0, FieldConfig{}, errs.New(errs.KindWrongType, fmt.Sprintf("field %q is not string-typed, facet search needs a string field", name))
	}
	return fid, fc, nil
}

func (ix *Index) logCorruptTree(op string, fid uint16, err error) {
	ix.logger.Errorw("corrupt facet tree detected",
		"op", op,
		"fid", fid,
		"error", err,
	)
}
