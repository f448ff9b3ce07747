package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

// addCenter updates or creates an attendance.Center
func (cli *commandLine) addCenter(id, name string, lat, lng float64) error {
	loc, err := geo.ParsePair([]float64{lat, lng})
	if err != nil {
		return errors.Wrap(err, "center location")
	}
	if geo.IsUnset(loc) {
		return errors.New("center location cannot be 0,0")
	}

	ctr, err := cli.backend.CreateCenter(context.Background(), attendance.Center{
		ID:       core.CleanString(id),
		Name:     core.CleanString(name),
		Location: loc,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, ctr.ID)
	return nil
}

// addEntity updates or creates a tutor or a student
func (cli *commandLine) addEntity(id, name, typ, centerID string) error {
	ctx := context.Background()
	ent := attendance.Entity{
		ID:       core.CleanString(id),
		Type:     attendance.EntityType(core.CleanString(typ, true /* lower */)),
		Name:     core.CleanString(name),
		CenterID: core.CleanString(centerID),
	}
	if !ent.Type.Valid() {
		return fmt.Errorf("type must be one of: %s, %s (got %q)", attendance.Tutor, attendance.Student, typ)
	}
	if ent.CenterID != "" {
		if _, err := cli.backend.Repo.GetCenter(ctx, ent.CenterID); err != nil {
			return err
		}
	}

	ent, err := cli.backend.Repo.CreateEntity(ctx, ent)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, ent.ID)
	return nil
}
