package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"facetcore/codec"
	"facetcore/facet"
	"facetcore/facettree"
)

const DefaultIndexDir = "facet-data"

// jsonDocument is one input record: an arbitrary document id plus a set of
// named facet values. Values are either strings or numbers; the loader
// infers each field's ValueType from the first document that sets it.
type jsonDocument struct {
	DocID  uint32                     `json:"doc_id"`
	Facets map[string]json.RawMessage `json:"facets"`
}

func main() {
	jsonInputFile := flag.String("path", "", "Path to the input JSON file (array of documents)")
	dir := flag.String("dir", DefaultIndexDir, "Directory to store the facet index")
	searchField := flag.String("search-field", "", "If set, run a facet search query against this field after indexing")
	searchQuery := flag.String("search-query", "", "Query string for -search-field")
	flag.Parse()

	if *jsonInputFile == "" {
		fmt.Println("Error: -path must be specified")
		os.Exit(1)
	}

	data, err := os.ReadFile(*jsonInputFile)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *jsonInputFile, err)
		os.Exit(1)
	}

	var docs []jsonDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d documents\n", len(docs))

	fields, editsByField, err := buildEdits(docs)
	if err != nil {
		fmt.Printf("Error preparing facet edits: %v\n", err)
		os.Exit(1)
	}

	ix, err := facet.Open(facet.Config{Dir: *dir, Fields: fields})
	if err != nil {
		fmt.Printf("Error opening index at %s: %v\n", *dir, err)
		os.Exit(1)
	}
	defer ix.Close()

	for name, edits := range editsByField {
		if err := ix.ApplyBatch(name, edits); err != nil {
			fmt.Printf("Error indexing field %q: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %d values for field %q\n", len(edits), name)
	}

	if *searchField != "" {
		hits, err := ix.FacetSearch(*searchField, *searchQuery, nil)
		if err != nil {
			fmt.Printf("Facet search failed: %v\n", err)
			os.Exit(1)
		}
		printHits(*searchField, *searchQuery, hits)
	}
}

// buildEdits infers a ValueType per field from the first document that sets
// it, and turns every document's facet values into per-field edit batches.
// A field's value may be a single string/number or a JSON array of them
// (e.g. `"genres":["Action","Adventure"]`), matching how a document can
// carry more than one value for the same facet.
func buildEdits(docs []jsonDocument) (map[string]facet.FieldConfig, map[string][]facettree.Edit, error) {
	fields := make(map[string]facet.FieldConfig)
	edits := make(map[string][]facettree.Edit)

	for _, doc := range docs {
		for name, raw := range doc.Facets {
			if err := addFacetEdits(fields, edits, name, doc.DocID, raw); err != nil {
				return nil, nil, err
			}
		}
	}
	return fields, edits, nil
}

func addFacetEdits(fields map[string]facet.FieldConfig, edits map[string][]facettree.Edit, name string, docID uint32, raw json.RawMessage) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, item := range arr {
			if err := addScalarFacetEdit(fields, edits, name, docID, item); err != nil {
				return err
			}
		}
		return nil
	}
	return addScalarFacetEdit(fields, edits, name, docID, raw)
}

func addScalarFacetEdit(fields map[string]facet.FieldConfig, edits map[string][]facettree.Edit, name string, docID uint32, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if _, seen := fields[name]; !seen {
			fields[name] = facet.FieldConfig{Filterable: true, FacetSearch: true, ValueType: codec.TString}
		}
		bound := codec.EncodeStringBound(s, facettree.DefaultConfig().MaxFacetValueLength)
		edits[name] = append(edits[name], facettree.Edit{Bound: bound, DocID: docID, Add: true})
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if _, seen := fields[name]; !seen {
			fields[name] = facet.FieldConfig{Filterable: true, ValueType: codec.TF64}
		}
		bound, err := codec.EncodeF64Bound(f)
		if err != nil {
			return fmt.Errorf("doc %d field %q: %w", docID, name, err)
		}
		edits[name] = append(edits[name], facettree.Edit{Bound: bound, DocID: docID, Add: true})
		return nil
	}

	return fmt.Errorf("doc %d field %q: value is neither string, number, nor an array of them", docID, name)
}

func printHits(field, query string, hits []facet.Hit) {
	fmt.Printf("Facet search %q on %q: %d matches\n", query, field, len(hits))
	for _, h := range hits {
		fmt.Printf("  %s (%d)\n", h.Value, h.Count)
	}
}
