package erp

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// Login screen.
const (
	selUser        = "#id_cod_usuario"
	selPassword    = "#nom_senha"
	selLoginButton = "#login"
)

// Menu paths, clicked in order.
var (
	menuPriceChange = []string{
		`//*[@id="menuBar"]/li[11]/a/span[2]`,
		`//*[@id="ul123"]/li[7]/a/span`,
		`//*[@id="ul130"]/li[2]/a/span`,
	}
	menuProducts = []string{
		`//*[@id="menuBar"]/li[1]/a/span[2]`,
		`//*[@id="ul1"]/li[1]/a/span`,
		`//*[@id="ul77"]/li[1]/a/span`,
	}
	menuStock = []string{
		`//*[@id="menuBar"]/li[11]/a/span[2]`,
		`//*[@id="ul123"]/li[4]/a/span`,
		`//*[@id="ul127"]/li[1]/a/span`,
	}
)

// Price-change report form.
const (
	selDepartment         = "#cod_deptoEntrada"
	selConsiderDepartment = "#consid_depto_D"
	tabPriceFilters       = `//*[@id="tabTabdhtmlgoodies_tabView1_1"]/a`
	selDateFrom           = "#dat_init"
	selDateTo             = "#dat_fim"
	selLastChange         = "#ultima_alteracao"
	selChangedProducts    = "#sel_produ_alt_3"
	selPriceChangeType    = "#sel_tipo_alt_preco_2"
)

// Product screen.
const (
	selProductCode     = "#cod_redbarraEntrada"
	selMainBarcode     = "#cod_barra_principal"
	selLongDescription = "#nom_prodcomp"
)

// Stock report form.
const (
	selGroupByBranch = "#agrup_fil_2"
	tabStockProducts = `//*[@id="tabTabdhtmlgoodies_tabView1_1"]/a`
	selStockCode     = "#cod_reduzidoEntrada"
	tabStockOutput   = `//*[@id="tabTabdhtmlgoodies_tabView1_3"]/a`
)

// Shared report controls.
const (
	selSpreadsheetOutput = "#saida_4"
	selRunReport         = "#runReport"
)

// loadingOverlayHidden reports true once the ERP's loading overlay is gone.
const loadingOverlayHidden = `(function() {
	var el = document.getElementById("divLoading");
	if (!el) { return true; }
	var style = window.getComputedStyle(el);
	return style.display === "none" || style.visibility === "hidden";
})()`

// waitIdle blocks until the loading overlay disappears.
func waitIdle() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var hidden bool
			if err := chromedp.Evaluate(loadingOverlayHidden, &hidden).Do(ctx); err != nil {
				return err
			}
			if hidden {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePoll):
			}
		}
	})
}

// clickMenu walks a menu path, waiting for the screen to settle at the end.
func clickMenu(path ...string) chromedp.Tasks {
	actions := make(chromedp.Tasks, 0, 2*len(path)+1)
	for _, xpath := range path {
		actions = append(actions,
			chromedp.WaitVisible(xpath, chromedp.BySearch),
			chromedp.Click(xpath, chromedp.BySearch),
		)
	}
	return append(actions, waitIdle())
}
