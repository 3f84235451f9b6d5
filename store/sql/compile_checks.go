package sqlstore

import "github.com/goliatone/go-hawkauth/core"

var (
	_ core.RecordStore = (*RecordStore)(nil)
	_ core.RecordStore = (*CachedRecordStore)(nil)
)
