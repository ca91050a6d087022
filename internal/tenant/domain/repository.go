package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	GetByUsername(ctx context.Context, username string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	TouchLastLogin(ctx context.Context, id snowflake.ID) error
}
