package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
)

type personFlags struct {
	firstName  string
	lastName   string
	maidenName string
	gender     string
	birthYear  int
	deathYear  int
	bio        string
	deceased   bool
}

func newPeopleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Manage the people in a tree",
		RunE:  runPeopleList,
	}

	cmd.AddCommand(
		newPeopleListCmd(),
		newPeopleShowCmd(),
		newPeopleAddCmd(),
		newPeopleEditCmd(),
		newPeopleDeleteCmd(),
	)

	return cmd
}

func newPeopleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List everyone in the tree",
		RunE:  runPeopleList,
	}
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
		people, err := h.People(cmd.Context())
		if err != nil {
			return err
		}

		if len(people) == 0 {
			fmt.Println("No people found.")
			return nil
		}

		fmt.Printf("%-34s %-30s %-8s %-6s %-6s %s\n", "ID", "NAME", "GENDER", "BORN", "DIED", "LINKS")
		fmt.Printf("%-34s %-30s %-8s %-6s %-6s %s\n", "--", "----", "------", "----", "----", "-----")
		for i := range people {
			p := &people[i]
			fmt.Printf("%-34s %-30s %-8s %-6s %-6s %d\n",
				p.ID, truncate(p.DisplayName(), 30), p.Gender, p.BirthYear(), p.DeathYear(), len(p.Relationships))
		}
		fmt.Printf("\nTotal: %d people\n", len(people))
		return nil
	})
}

func newPeopleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a person and their relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.Person(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				displayPerson(p)
				return nil
			})
		},
	}
}

func displayPerson(p *entities.Person) {
	fmt.Printf("ID: %s\n", p.ID)
	fmt.Printf("  Name: %s\n", p.DisplayName())
	if p.MaidenName != "" {
		fmt.Printf("  Maiden name: %s\n", p.MaidenName)
	}
	fmt.Printf("  Gender: %s\n", p.Gender)
	if year := p.BirthYear(); year != "" {
		fmt.Printf("  Born: %s\n", year)
	}
	if year := p.DeathYear(); year != "" {
		fmt.Printf("  Died: %s\n", year)
	}
	if p.Bio != "" {
		fmt.Printf("  Bio: %s\n", p.Bio)
	}

	if len(p.Relationships) == 0 {
		fmt.Println("  Relationships: none")
		return
	}
	fmt.Println("  Relationships:")
	for _, rel := range p.Relationships {
		if rel.Type == entities.RelationSpouse {
			fmt.Printf("    %-7s %s (%s)\n", rel.Type, rel.PersonID, rel.Status.OrCurrent())
			continue
		}
		fmt.Printf("    %-7s %s\n", rel.Type, rel.PersonID)
	}
}

func newPeopleAddCmd() *cobra.Command {
	var flags personFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person to the tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &entities.Person{IsLiving: true, Gender: entities.GenderUnknown}
			if err := flags.apply(cmd, p); err != nil {
				return err
			}
			return addPerson(cmd, p)
		},
	}

	addPersonFlags(cmd, &flags)

	return cmd
}

func newPeopleEditCmd() *cobra.Command {
	var flags personFlags

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit the profile fields of a person",
		Long:  "Edits profile fields. Relationships are changed with the link commands.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.Person(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := flags.apply(cmd, p); err != nil {
					return err
				}
				saved, err := h.SavePerson(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Printf("Updated %s (%s)\n", saved.DisplayName(), saved.ID)
				return nil
			})
		},
	}

	addPersonFlags(cmd, &flags)

	return cmd
}

func addPersonFlags(cmd *cobra.Command, flags *personFlags) {
	cmd.Flags().StringVar(&flags.firstName, "first", "", "First name")
	cmd.Flags().StringVar(&flags.lastName, "last", "", "Last name")
	cmd.Flags().StringVar(&flags.maidenName, "maiden", "", "Maiden name")
	cmd.Flags().StringVarP(&flags.gender, "gender", "g", "", "Gender (MALE, FEMALE, OTHER, UNKNOWN)")
	cmd.Flags().IntVar(&flags.birthYear, "born", 0, "Birth year")
	cmd.Flags().IntVar(&flags.deathYear, "died", 0, "Death year")
	cmd.Flags().StringVar(&flags.bio, "bio", "", "Short biography")
	cmd.Flags().BoolVar(&flags.deceased, "deceased", false, "Mark the person as no longer living")
}

// apply copies the flags the user set onto p.
func (f *personFlags) apply(cmd *cobra.Command, p *entities.Person) error {
	changed := cmd.Flags().Changed

	if changed("first") {
		p.FirstName = f.firstName
	}
	if changed("last") {
		p.LastName = f.lastName
	}
	if changed("maiden") {
		p.MaidenName = f.maidenName
	}
	if changed("gender") {
		g := entities.Gender(strings.ToUpper(f.gender))
		if !g.Valid() {
			return fmt.Errorf("invalid gender %q", f.gender)
		}
		p.Gender = g
	}
	if changed("born") {
		p.Birth = yearEvent(entities.EventBirth, f.birthYear)
	}
	if changed("died") {
		p.Death = yearEvent(entities.EventDeath, f.deathYear)
		p.IsLiving = false
	}
	if changed("bio") {
		p.Bio = f.bio
	}
	if changed("deceased") {
		p.IsLiving = !f.deceased
	}
	return nil
}

func yearEvent(t entities.EventType, year int) *entities.Event {
	if year <= 0 {
		return nil
	}
	return &entities.Event{
		ID:   uuid.NewString(),
		Type: t,
		Date: &entities.DateInfo{Year: year, Display: strconv.Itoa(year)},
	}
}

func addPerson(cmd *cobra.Command, p *entities.Person) error {
	return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
		saved, err := h.SavePerson(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", saved.DisplayName(), saved.ID)
		return nil
	})
}

func newPeopleDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a person and every link to them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.Person(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !force && !confirmAction(fmt.Sprintf("Delete %s and %d links?", p.DisplayName(), len(p.Relationships))) {
					fmt.Println("Cancelled.")
					return nil
				}
				if err := h.DeletePerson(cmd.Context(), p.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted %s (%s)\n", p.DisplayName(), p.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// confirmAction prompts the user for confirmation.
func confirmAction(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
