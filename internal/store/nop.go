package store

import (
	"context"

	"github.com/amishk599/searchradar/internal/model"
)

// NopStore is used by dry runs. Lookups never find anything and writes are
// discarded, so every candidate looks new on each run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (NopStore) WithTx(_ context.Context, fn func(tx model.Tx) error) error {
	return fn(nopTx{})
}

type nopTx struct{}

func (nopTx) CompanyByName(context.Context, string) (*model.Company, error) { return nil, nil }
func (nopTx) CreateCompany(context.Context, *model.Company) error           { return nil }
func (nopTx) UpdateCompany(context.Context, *model.Company) error           { return nil }
func (nopTx) JobByDedupeKey(context.Context, string) (*model.Job, error)    { return nil, nil }
func (nopTx) InsertJob(context.Context, *model.Job) error                   { return nil }
func (nopTx) UpdateJob(context.Context, *model.Job) error                   { return nil }
