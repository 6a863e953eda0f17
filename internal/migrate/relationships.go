package migrate

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// restoreRelationships sweeps the target's history items once every kind has
// been migrated. An owner link that does not resolve in the target is fixed by
// re-copying the owner from the source; if the source lacks it too, the link
// is counted as orphaned and left as is. Items referencing both a contact and
// a holiday keep the contact.
func (e *Engine) restoreRelationships(ctx context.Context, src Reader, dst Writer, rep *Report) error {
	for _, kind := range []record.Kind{record.KindCard, record.KindCongrats} {
		err := dst.Scan(ctx, kind, func(page []record.Record) error {
			return e.repairPage(ctx, kind, page, src, dst, rep)
		})
		if err != nil {
			return wrapError(kind, StageRelationships, err)
		}
	}
	return nil
}

func (e *Engine) repairPage(ctx context.Context, kind record.Kind, page []record.Record, src Reader, dst Writer, rep *Report) error {
	var batch store.Batch
	links := make([]link, 0, len(page))

	for _, r := range page {
		item, ok := r.(record.Owned)
		if !ok {
			continue
		}
		contactID, holidayID := item.Owners()
		if contactID != "" && holidayID != "" {
			fixed := item.Clone()
			dropHolidayLink(fixed)
			batch.Updates = append(batch.Updates, fixed)
			rep.Cleared++
			rep.repaired++
			e.logger.Warn("dropped holiday link of history item owned by a contact",
				"kind", kind, "id", item.RecordID(), "holiday_id", holidayID)
			holidayID = ""
		}
		switch {
		case contactID != "":
			links = append(links, link{item: item.RecordID(), kind: record.KindContact, owner: contactID})
		case holidayID != "":
			links = append(links, link{item: item.RecordID(), kind: record.KindHoliday, owner: holidayID})
		}
	}

	for _, ownerKind := range []record.Kind{record.KindContact, record.KindHoliday} {
		ids := ownerIDs(links, ownerKind)
		if len(ids) == 0 {
			continue
		}

		present, err := dst.Lookup(ctx, ownerKind, ids)
		if err != nil {
			return fmt.Errorf("lookup target owners: %w", err)
		}
		var missing []string
		for _, id := range ids {
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			continue
		}

		found, err := src.Lookup(ctx, ownerKind, missing)
		if err != nil {
			return fmt.Errorf("lookup source owners: %w", err)
		}
		for _, id := range missing {
			owner, ok := found[id]
			if ok && owner.Validate() == nil {
				batch.Creates = append(batch.Creates, owner.Clone())
				rep.Restored++
				continue
			}
			for _, l := range links {
				if l.kind == ownerKind && l.owner == id {
					rep.Orphaned++
					e.logger.Warn("history item references a missing owner",
						"kind", kind, "id", l.item, "owner_kind", ownerKind, "owner_id", id)
				}
			}
		}
	}

	if err := dst.Commit(ctx, batch); err != nil {
		return fmt.Errorf("commit repairs: %w", err)
	}
	return nil
}

// dropHolidayLink clears the holiday link of a history item that also names
// a contact, and reports whether it did.
func dropHolidayLink(r record.Record) bool {
	item, ok := r.(record.Owned)
	if !ok {
		return false
	}
	contactID, holidayID := item.Owners()
	if contactID == "" || holidayID == "" {
		return false
	}
	item.SetOwners(contactID, "")
	return true
}

// link is one history item's reference to its owner.
type link struct {
	item  string
	kind  record.Kind
	owner string
}

// ownerIDs returns the distinct owner identifiers of kind, sorted.
func ownerIDs(links []link, kind record.Kind) []string {
	var ids []string
	for _, l := range links {
		if l.kind == kind {
			ids = append(ids, l.owner)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
