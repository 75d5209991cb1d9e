package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/config"
	"github.com/billbatista/acasinha-chores/database"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/user"
)

const defaultCategory = "Default"

var seedUsers = []string{"Maia", "Jaz", "Simon", "Aldo"}

type seedCategory struct {
	name string
	icon string
	kind category.Kind
}

// seed creates the starter household. Existing rows are left untouched.
func seed(ctx context.Context, db *database.DB, tasks config.TasksConfig) error {
	users := user.NewRepository(db)
	for _, name := range seedUsers {
		existing, err := users.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := users.Register(ctx, name, ""); err != nil {
			return fmt.Errorf("seed user %s: %w", name, err)
		}
		slog.Info("seeded user", "name", name)
	}

	categories := category.NewRepository(db)
	for _, c := range []seedCategory{
		{name: tasks.Trash, icon: "🗑️", kind: category.KindRecency},
		{name: "Power", icon: "⚡️", kind: category.KindOrdinary},
		{name: "Purchases", icon: "🛍️", kind: category.KindOrdinary},
		{name: tasks.Cleaning, icon: "🧹", kind: category.KindRotation},
		{name: defaultCategory, icon: category.DefaultIcon, kind: category.KindOrdinary},
	} {
		if _, err := categories.Ensure(ctx, c.name, c.icon, c.kind); err != nil {
			return fmt.Errorf("seed category %s: %w", c.name, err)
		}
	}

	if _, err := item.NewRepository(db).Ensure(ctx, "Toilet paper", "🧻"); err != nil {
		return fmt.Errorf("seed item: %w", err)
	}
	return nil
}
