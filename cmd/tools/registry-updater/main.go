// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/validation"
	"support-drafts/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRegistryPath, "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., summarize-ticket)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Summarize Ticket)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "drafting", "Category")
	taskType := addCmd.String("taskType", "", "Job type the worker subscribes to")
	inputSchema := addCmd.String("inputSchema", "", "Embedded validation schema name")
	errorCodes := addCmd.String("errorCodes", "", "Comma separated BPMN error codes")
	timeout := addCmd.String("timeout", "30s", "Job timeout")
	version := addCmd.String("version", "1.0.0", "Version")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (version, timeout, retries, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *taskType == "" {
			fmt.Println("Error: id, displayName and taskType are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err = addActivity(*addPath, registry.Activity{
			ID:          *idAdd,
			DisplayName: *displayName,
			Description: *description,
			Category:    *category,
			Version:     *version,
			TaskType:    *taskType,
			InputSchema: *inputSchema,
			ErrorCodes:  splitList(*errorCodes),
			Timeout:     *timeout,
			Outputs:     []string{},
			Tags:        []string{},
		})
		if err == nil {
			fmt.Printf("Added activity: %s\n", *idAdd)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateActivity(*updatePath, *idUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		var n int
		n, err = validateRegistry(*validatePath)
		if err == nil {
			fmt.Printf("Registry validation passed. Found %d activities.\n", n)
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		reg = &registry.ActivityRegistry{Version: "1.0.0"}
	} else if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if _, exists := reg.Find(activity.TaskType); exists {
		return fmt.Errorf("task type %s is already registered", activity.TaskType)
	}
	reg.Activities = append(reg.Activities, activity)

	if err := check(reg); err != nil {
		return err
	}
	return reg.Save(path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var a *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			a = &reg.Activities[i]
			break
		}
	}
	if a == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "taskType":
		a.TaskType = value
	case "inputSchema":
		a.InputSchema = value
	case "errorCodes":
		a.ErrorCodes = splitList(value)
	case "outputs":
		a.Outputs = splitList(value)
	case "timeout":
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := check(reg); err != nil {
		return err
	}
	return reg.Save(path)
}

func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	return len(reg.Activities), check(reg)
}

// check validates the registry against the error codes and schemas compiled into this build.
func check(reg *registry.ActivityRegistry) error {
	if err := reg.Validate(apperrors.IsBPMNErrorCode); err != nil {
		return err
	}
	v, err := validation.NewValidator()
	if err != nil {
		return err
	}
	for _, a := range reg.Activities {
		if a.InputSchema != "" && !v.HasSchema(a.InputSchema) {
			return fmt.Errorf("activity %s: unknown input schema %s", a.ID, a.InputSchema)
		}
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -id summarize-ticket -displayName "Summarize Ticket" -taskType summarize-ticket -errorCodes TICKET_NOT_FOUND
  registry-updater update -id generate-draft -field timeout -value 120s
  registry-updater validate -path configs/activity-registry.json`)
}
