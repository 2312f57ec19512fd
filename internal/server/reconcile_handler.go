package server

import (
	"net/http"

	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/feed"
	"github.com/labstack/echo/v4"
)

// reconcile contains the reconciliation handlers.
type reconcile struct {
	db database.Client
}

///// Run
////
//

// Run triggers a reconciliation pass and reports how many records it
// corrected. Running it twice without intervening writes corrects zero
// records on the second pass.
func (h *reconcile) Run(c echo.Context) error {
	corrected, err := feed.NewReconciler(h.db).Run()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"corrected": corrected,
	})
}
