package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootViper = viper.New()

var rootCmd = &cobra.Command{
	Use:   "cgnatd",
	Short: "Carrier-grade NAT dataplane",
	Long: `cgnatd translates a customer-private address block onto a small
pool of public IPv4 addresses, one stateful binding per flow.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "/etc/cgnatd/cgnatd.yaml", "path to the YAML config file")
	rootViper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}
