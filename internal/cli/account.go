package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/spf13/cobra"
)

func (a *app) newLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login LOGIN",
		Short: "Log in and keep the session for later commands",
		Long: "Log in with a DeckTutor account. Without --password the password is read " +
			"from the first line of standard input.",
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&password,
		"password", "p",
		"",
		"Account password",
	)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if password == "" {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("a password is required")
		}

		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			user, err := c.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			return a.print(w, user, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s\n", user.Login)
			})
		})(cmd, args)
	}

	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			if c.Session() == nil {
				return errors.New("not logged in")
			}
			if err := c.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(w, "Logged out")
			return nil
		}),
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the login the service sees for the stored session",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			login, err := c.GetLogin(ctx)
			if err != nil {
				return err
			}
			return a.print(w, map[string]string{"login": login}, func(w io.Writer) {
				if login == "" {
					fmt.Fprintln(w, "Not logged in")
					return
				}
				fmt.Fprintln(w, login)
			})
		}),
	}
}

func (a *app) newCaptchaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "captcha",
		Short: "Request a captcha to answer when registering",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			captcha, err := c.CreateCaptcha(ctx)
			if err != nil {
				return err
			}
			return a.print(w, captcha, func(w io.Writer) {
				fmt.Fprintf(w, "code:      %s\nchallenge: %s\n", captcha.Code, captcha.Challenge)
			})
		}),
	}
}

// RegisterFlags holds the register command input
type RegisterFlags struct {
	Login         string
	Password      string
	Email         string
	FirstName     string
	LastName      string
	BirthDate     string
	Phone         string
	Street        string
	City          string
	Zip           string
	Province      string
	Country       string
	Language      string
	Currency      string
	AcceptPrivacy bool
	CaptchaCode   string
	CaptchaAnswer string
}

// Validate builds the registration and the optional captcha answer
func (f *RegisterFlags) Validate() (*decktutor.Registration, *decktutor.CaptchaAnswer, error) {
	if f.Login == "" || f.Password == "" || f.Email == "" {
		return nil, nil, errors.New("--login, --password and --email must be specified")
	}
	if !f.AcceptPrivacy {
		return nil, nil, errors.New("the privacy policy must be accepted with --accept-privacy")
	}
	if (f.CaptchaCode == "") != (f.CaptchaAnswer == "") {
		return nil, nil, errors.New("--captcha-code and --captcha-answer go together")
	}

	reg := &decktutor.Registration{
		Privacy: true,
		User: decktutor.Account{
			Login:    f.Login,
			Password: f.Password,
			Email:    f.Email,
		},
		Person: decktutor.Person{
			FirstName: f.FirstName,
			LastName:  f.LastName,
			BirthDate: f.BirthDate,
			Phone:     f.Phone,
		},
		Address: decktutor.Address{
			Street:   f.Street,
			City:     f.City,
			Zip:      f.Zip,
			Province: f.Province,
			Country:  f.Country,
		},
		Prefs: map[string]any{},
	}
	if f.Language != "" {
		reg.Prefs["language"] = f.Language
	}
	if f.Currency != "" {
		reg.Prefs["currency"] = f.Currency
	}

	var captcha *decktutor.CaptchaAnswer
	if f.CaptchaCode != "" {
		captcha = &decktutor.CaptchaAnswer{Code: f.CaptchaCode, Answer: f.CaptchaAnswer}
	}
	return reg, captcha, nil
}

func (a *app) newRegisterCmd() *cobra.Command {
	f := &RegisterFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a DeckTutor account",
		Long: "Create a DeckTutor account. When the service requires a captcha, request " +
			"one with the captcha command and pass its code and answer.",
		Args: cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.StringVar(&f.Login, "login", "", "Nickname to register")
	flags.StringVar(&f.Password, "password", "", "Account password")
	flags.StringVar(&f.Email, "email", "", "Contact email")
	flags.StringVar(&f.FirstName, "first-name", "", "First name")
	flags.StringVar(&f.LastName, "last-name", "", "Last name")
	flags.StringVar(&f.BirthDate, "birth-date", "", "Birth date, YYYY-MM-DD")
	flags.StringVar(&f.Phone, "phone", "", "Phone number")
	flags.StringVar(&f.Street, "street", "", "Street address")
	flags.StringVar(&f.City, "city", "", "City")
	flags.StringVar(&f.Zip, "zip", "", "Postal code")
	flags.StringVar(&f.Province, "province", "", "Province or state")
	flags.StringVar(&f.Country, "country", "", "Country code")
	flags.StringVar(&f.Language, "language", "", "Preferred language")
	flags.StringVar(&f.Currency, "currency", "", "Preferred currency")
	flags.BoolVar(&f.AcceptPrivacy, "accept-privacy", false, "Accept the privacy policy")
	flags.StringVar(&f.CaptchaCode, "captcha-code", "", "Code of the answered captcha")
	flags.StringVar(&f.CaptchaAnswer, "captcha-answer", "", "Answer to the captcha challenge")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		reg, captcha, err := f.Validate()
		if err != nil {
			return err
		}
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			if err := c.Register(ctx, reg, captcha); err != nil {
				return err
			}
			fmt.Fprintf(w, "Registered %s\n", reg.User.Login)
			return nil
		})(cmd, args)
	}

	return cmd
}
