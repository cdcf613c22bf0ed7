package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage employees",
}

var employeeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List employees and whether their face is registered",
	RunE:  runEmployeeList,
}

var employeeImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import employees from a YAML file",
	Long: `Import employees from a YAML file. Each employee gets the next free EMP###
id. Employees whose email already exists are skipped. A face descriptor, when
present, is registered right away.

Example file:
  employees:
    - name: Asha Rao
      email: asha@example.com
      department: Physics
      role: admin
      face_descriptor: [0.012, -0.104, ...]`,
	Args: cobra.ExactArgs(1),
	RunE: runEmployeeImport,
}

func init() {
	rootCmd.AddCommand(employeeCmd)
	employeeCmd.AddCommand(employeeListCmd)
	employeeCmd.AddCommand(employeeImportCmd)

	employeeListCmd.Flags().Bool("json", false, "Output as JSON")
	employeeImportCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

func runEmployeeList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx := context.Background()
	repo, err := database.GetEmployeeReader(ctx)
	if err != nil {
		return err
	}
	employees, err := repo.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("listing employees: %w", err)
	}

	if jsonOutput {
		return outputJSON(employees)
	}
	fmt.Printf("%-8s  %-30s  %-30s  %-15s  %-8s  %s\n", "ID", "NAME", "EMAIL", "DEPARTMENT", "ROLE", "FACE")
	for _, e := range employees {
		face := "no"
		if e.HasFace() {
			face = "yes"
		}
		fmt.Printf("%-8s  %-30s  %-30s  %-15s  %-8s  %s\n", e.EmployeeID, e.Name, e.Email, e.Department, e.Role, face)
	}
	fmt.Printf("\n%d employees\n", len(employees))
	return nil
}

// importFile is the YAML layout accepted by employee import.
type importFile struct {
	Employees []importEntry `yaml:"employees"`
}

type importEntry struct {
	Name           string    `yaml:"name" validate:"required,max=255"`
	Email          string    `yaml:"email" validate:"required,email,max=255"`
	Department     string    `yaml:"department" validate:"max=255"`
	Role           string    `yaml:"role" validate:"omitempty,oneof=employee admin"`
	FaceDescriptor []float32 `yaml:"face_descriptor"`
}

// ImportResult summarizes an employee import.
type ImportResult struct {
	Created      []string `json:"created"`
	Skipped      int      `json:"skipped"`
	FacesAdded   int      `json:"faces_added"`
	Errors       []string `json:"errors,omitempty"`
	IndexedFaces int      `json:"indexed_faces,omitempty"`
}

var importValidate = validator.New(validator.WithRequiredStructEnabled())

// importEmployees creates the entries one by one. Invalid entries and failed
// face registrations are reported in the result; store failures abort.
func importEmployees(ctx context.Context, repo database.EmployeeWriter, entries []importEntry, descriptorLength int, bar *progressbar.ProgressBar) (ImportResult, error) {
	result := ImportResult{Created: []string{}}

	for i, entry := range entries {
		if bar != nil {
			_ = bar.Add(1)
		}
		if err := importValidate.Struct(entry); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d (%s): %v", i+1, entry.Email, err))
			continue
		}

		employeeID, err := repo.NextEmployeeID(ctx)
		if err != nil {
			return result, fmt.Errorf("next employee id: %w", err)
		}
		e := &database.Employee{
			EmployeeID: employeeID,
			Name:       strings.TrimSpace(entry.Name),
			Email:      strings.ToLower(strings.TrimSpace(entry.Email)),
			Department: strings.TrimSpace(entry.Department),
			Role:       entry.Role,
		}
		if err := repo.CreateEmployee(ctx, e); err != nil {
			if errors.Is(err, database.ErrConflict) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("creating %s: %w", e.Email, err)
		}
		result.Created = append(result.Created, e.EmployeeID)

		if len(entry.FaceDescriptor) == 0 {
			continue
		}
		if err := facematch.ValidateDescriptor(entry.FaceDescriptor, descriptorLength); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s face: %v", e.EmployeeID, err))
			continue
		}
		if err := repo.SetFaceDescriptor(ctx, e.EmployeeID, entry.FaceDescriptor); err != nil {
			return result, fmt.Errorf("registering face of %s: %w", e.EmployeeID, err)
		}
		result.FacesAdded++
	}
	return result, nil
}

func runEmployeeImport(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}
	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing import file: %w", err)
	}
	if len(file.Employees) == 0 {
		return errors.New("import file contains no employees")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx := context.Background()
	repo, err := database.GetEmployeeWriter(ctx)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(file.Employees),
			progressbar.OptionSetDescription("Importing employees"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("employees"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	result, err := importEmployees(ctx, repo, file.Employees, cfg.Face.DescriptorLength, bar)
	if err != nil {
		return err
	}

	if result.FacesAdded > 0 && cfg.Face.IndexPath != "" {
		database.RegisterFaceIndex(database.NewFaceIndex())
		n, err := database.RebuildFaceIndex(ctx, cfg.Face.IndexPath)
		if err != nil {
			logger.Warnw("failed to rebuild face index", "error", err)
		}
		result.IndexedFaces = n
	}

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("\nCreated: %d  Skipped (existing email): %d  Faces registered: %d\n",
		len(result.Created), result.Skipped, result.FacesAdded)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}
