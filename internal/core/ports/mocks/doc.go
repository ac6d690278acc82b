// Package mocks provides in-memory doubles for the ports interfaces.
//
// MessageSource serves a fixed, id-ordered message list and can inject an
// iteration failure (FailAfter). TableStore keeps worksheets as string grids
// and records every append so tests can assert batch sizes; a Table's
// AppendFn scripts transient failures. CursorStore keeps scan cursors in a
// map. Fields ending in Fn override the matching method.
//
//	source := mocks.NewMessageSource(msgs...)
//	tables := mocks.NewTableStore()
//	driver := pipeline.NewDriver(source, tables, nil, settings, &logger)
//	// ... assert on tables.Table(key, name).Rows()
package mocks
