// Package openapi connects route tables with OpenAPI 3 documents.
//
// Registrar turns a document into routes: every operation with an
// operationId becomes a route dispatching to a declared action whose
// parameters, types and validation rules come from the document. Export
// goes the other way and describes an assembled table as a document.
//
//	doc, err := openapi.Load(ctx, "api.yaml")
//	if err != nil {
//	    return err
//	}
//	table, err := pipeline.Assemble(func(b *pipeline.Builder) {
//	    b.Use(openapi.Registrar(doc, nil))
//	})
package openapi
