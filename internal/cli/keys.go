package cli

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "查看 API 密钥池",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "列出已配置的密钥（已打码）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()

			pool, err := keypool.NewPool(rt.cfg.Keys)
			if err != nil {
				color.Yellow("未配置 API 密钥 (GUIDED_API_KEYS / GUIDED_PAID_API_KEYS 或配置文件 keys)")
				return nil
			}

			status := pool.Status()
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"#", "密钥", "类型", ""})
			for i, k := range pool.Keys() {
				kind := "free"
				if k.IsPaid {
					kind = "paid"
				}
				marker := ""
				if i == status.CurrentIndex {
					marker = "当前"
				}
				tw.AppendRow(table.Row{i + 1, keypool.Mask(k.Key), kind, marker})
			}
			tw.AppendFooter(table.Row{"", "合计", status.KeyCount, "付费 " + strconv.Itoa(status.PaidCount)})
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	})
	return cmd
}
