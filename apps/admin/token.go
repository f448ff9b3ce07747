package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/tutorcenter/apps/api/echo"
	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
)

const roleAdmin = "admin"

// token prints an API token for an admin, or for an existing entity of the given role.
func (cli *commandLine) token(id, role string) error {
	id = core.CleanString(id)
	role = core.CleanString(role, true /* lower */)

	var claims *echoapi.Claims
	if role == roleAdmin {
		claims = echoapi.NewClaims(cli.conf, id, "Admin", "")
	} else {
		typ := attendance.EntityType(role)
		if !typ.Valid() {
			return fmt.Errorf("role must be one of: %s, %s, %s (got %q)", roleAdmin, attendance.Tutor, attendance.Student, role)
		}
		ent, err := cli.svc.GetEntity(context.Background(), id)
		if err != nil {
			return err
		}
		if ent.Type != typ {
			return fmt.Errorf("%s is a %s, not a %s", ent.ID, ent.Type, typ)
		}
		claims = echoapi.NewClaims(cli.conf, ent.ID, ent.Name, ent.Type)
	}

	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
