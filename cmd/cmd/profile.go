/*
Copyright © 2025 Newsroom Authors
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newsroom/internal/core"
)

var (
	profileName        string
	profileSourceURLs  []string
	profileKeywords    []string
	profileTrends      []string
	profileCompetitors []string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage reusable run profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileName == "" {
			return fmt.Errorf("a profile name is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		p := &core.Profile{
			Name:               profileName,
			DefaultSourceURLs:  profileSourceURLs,
			DefaultKeywords:    profileKeywords,
			DefaultTrends:      profileTrends,
			DefaultCompetitors: profileCompetitors,
		}
		if err := s.CreateProfile(p); err != nil {
			return err
		}
		fmt.Printf("Created profile %s\n", p.ID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		profiles, err := s.ListProfiles()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles yet.")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%s  %s  (%d sources, keywords: %s)\n",
				p.ID, p.Name, len(p.DefaultSourceURLs), strings.Join(p.DefaultKeywords, ", "))
		}
		return nil
	},
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileName, "name", "", "profile name")
	profileCreateCmd.Flags().StringSliceVar(&profileSourceURLs, "source-url", nil, "default source URL (repeatable)")
	profileCreateCmd.Flags().StringSliceVar(&profileKeywords, "keyword", nil, "default keyword (repeatable)")
	profileCreateCmd.Flags().StringSliceVar(&profileTrends, "trend", nil, "default trend to watch (repeatable)")
	profileCreateCmd.Flags().StringSliceVar(&profileCompetitors, "competitor", nil, "default competitor to watch (repeatable)")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileListCmd)
	rootCmd.AddCommand(profileCmd)
}
