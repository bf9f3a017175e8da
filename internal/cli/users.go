package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type userView struct {
	ID         uint   `json:"id"`
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username,omitempty"`
	Name       string `json:"name,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List known users and their Telegram IDs",
		Run:   runUsers,
	}

	RootCmd.AddCommand(cmd)
}

func runUsers(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	users, err := a.users.ListAll(cmd.Context())
	if err != nil {
		exitErr("users", err)
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		name := u.FirstName
		if u.LastName != "" {
			name += " " + u.LastName
		}
		views = append(views, userView{ID: u.ID, TelegramID: u.TelegramID, Username: u.Username, Name: name})
	}
	if err := output(cmd, views, func(w io.Writer) {
		for _, v := range views {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", v.ID, v.TelegramID, v.Username, v.Name)
		}
	}); err != nil {
		exitErr("output", err)
	}
}
