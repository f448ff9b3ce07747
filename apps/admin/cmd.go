package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/storage"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	backend *storage.Backend
	svc     attendance.ServiceInterface
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (postgres storage only)")
	fmt.Fprintln(cli.out, "  addcenter -name NAME -lat LAT -lng LNG [-id ID] - create or update a center")
	fmt.Fprintln(cli.out, "  addentity -name NAME -type tutor|student [-center ID] [-id ID] - create or update a tutor or student")
	fmt.Fprintln(cli.out, "  token -id ID -role admin|tutor|student - issue an API token")
	fmt.Fprintln(cli.out, "  report -year YEAR -month MONTH [-center ID] [-type tutor|student] - print a monthly attendance report")
}

// isSet reports whether the flag was passed on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	var found bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCenterCmd := flag.NewFlagSet("addcenter", flag.ExitOnError)
	addCenterID := addCenterCmd.String("id", "", "The center ID. Generated when empty; an existing center is updated.")
	addCenterName := addCenterCmd.String("name", "", "The center name.")
	addCenterLat := addCenterCmd.Float64("lat", 0, "The center latitude.")
	addCenterLng := addCenterCmd.Float64("lng", 0, "The center longitude.")

	addEntityCmd := flag.NewFlagSet("addentity", flag.ExitOnError)
	addEntityID := addEntityCmd.String("id", "", "The entity ID. Generated when empty; an existing entity is updated.")
	addEntityName := addEntityCmd.String("name", "", "The tutor or student name.")
	addEntityType := addEntityCmd.String("type", "", "tutor or student.")
	addEntityCenter := addEntityCmd.String("center", "", "The ID of the assigned center.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenID := tokenCmd.String("id", "", "The entity ID, or the admin's identifier.")
	tokenRole := tokenCmd.String("role", "", "admin, tutor or student.")

	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	reportYear := reportCmd.Int("year", 0, "The report year.")
	reportMonth := reportCmd.Int("month", 0, "The report month (1-12).")
	reportCenter := reportCmd.String("center", "", "Only entities assigned to this center.")
	reportType := reportCmd.String("type", "", "Only tutors or students.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addcenter":
		if err := addCenterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCenterName == "" || !isSet(addCenterCmd, "lat") || !isSet(addCenterCmd, "lng") {
			addCenterCmd.Usage()
			return errHelp
		}
		return cli.addCenter(*addCenterID, *addCenterName, *addCenterLat, *addCenterLng)
	case "addentity":
		if err := addEntityCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addEntityName == "" || *addEntityType == "" {
			addEntityCmd.Usage()
			return errHelp
		}
		return cli.addEntity(*addEntityID, *addEntityName, *addEntityType, *addEntityCenter)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID, *tokenRole)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportYear == 0 || *reportMonth == 0 {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(attendance.ReportQuery{
			Year:     *reportYear,
			Month:    *reportMonth,
			CenterID: *reportCenter,
			Type:     attendance.EntityType(*reportType),
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
