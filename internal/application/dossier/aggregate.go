package dossier

import (
	"context"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// loadAggregate reads the dossier row and every child collection.  With
// forUpdate the dossier row stays locked until the transaction ends, which
// serialises mutations and alert deduplication per dossier.
func loadAggregate(ctx context.Context, repos Repositories, tenant common.TenantID, id common.ID, forUpdate bool) (*domain.Dossier, error) {
	d, err := repos.Dossiers.Get(ctx, tenant, id, forUpdate)
	if err != nil {
		return nil, err
	}
	if d.Echeances, err = repos.Obligations.ListEcheances(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Entries, err = repos.Obligations.ListEntries(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Documents, err = repos.Obligations.ListDocuments(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Declarations, err = repos.Declarations.ListByDossier(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Alerts, err = repos.Alerts.ListByDossier(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.History, err = repos.History.ListByDossier(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// saveAggregate writes the dossier row and upserts its children.
// Declarations go first so derived échéances can reference them.
func saveAggregate(ctx context.Context, repos Repositories, d *domain.Dossier, insert bool) error {
	var err error
	if insert {
		err = repos.Dossiers.Insert(ctx, d)
	} else {
		err = repos.Dossiers.Update(ctx, d)
	}
	if err != nil {
		return err
	}
	if err := repos.Declarations.Save(ctx, d.Declarations); err != nil {
		return err
	}
	if err := repos.Obligations.SaveEcheances(ctx, d.Echeances); err != nil {
		return err
	}
	if err := repos.Obligations.SaveEntries(ctx, d.Entries); err != nil {
		return err
	}
	if err := repos.Obligations.SaveDocuments(ctx, d.Documents); err != nil {
		return err
	}
	if err := repos.Alerts.Save(ctx, d.Alerts); err != nil {
		return err
	}
	return repos.History.Append(ctx, d.History)
}

// ownerOf resolves the dossier of a child entity.
func ownerOf(ctx context.Context, repos Repositories, tenant common.TenantID, kind domain.ChildKind, childID common.ID) (common.ID, error) {
	if err := childID.Validate(); err != nil {
		return "", apperrors.InvalidParam(err.Error())
	}
	return repos.Dossiers.OwnerOf(ctx, tenant, kind, childID)
}
