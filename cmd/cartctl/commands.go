package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"storefront-client/internal/domain"
	"storefront-client/internal/presenter"
)

func loginGuest(c *cli.Context) error {
	user, err := appFrom(c).Auth.GuestLogin(ctxFrom(c))
	if err != nil {
		return err
	}
	return printUser(c, user)
}

func loginGoogle(c *cli.Context) error {
	user, err := appFrom(c).Auth.GoogleLogin(ctxFrom(c), c.String("id-token"))
	if err != nil {
		return err
	}
	return printUser(c, user)
}

func logout(c *cli.Context) error {
	return appFrom(c).Auth.Logout(ctxFrom(c))
}

func whoami(c *cli.Context) error {
	a := appFrom(c)
	if !c.Bool("verify") || !a.Session.IsAuthenticated() {
		return printUser(c, a.Session.User())
	}
	user, err := a.Auth.Verify(ctxFrom(c))
	if err != nil {
		return errors.Wrap(err, "verify session")
	}
	return printUser(c, user)
}

func cartShow(c *cli.Context) error {
	a := appFrom(c)
	a.Cart.Fetch(ctxFrom(c))
	return printCart(c, a.Presenter.CartPage())
}

func cartAdd(c *cli.Context) error {
	productID, err := int64Arg(c, 0, "product-id")
	if err != nil {
		return err
	}
	a := appFrom(c)
	out, err := a.Cart.RequestAdd(ctxFrom(c), productID, c.Int("qty"))
	if err != nil {
		return err
	}
	if out.Pending != nil {
		return errors.New("login required: run `cartctl login guest` and retry")
	}
	return printCart(c, a.Presenter.CartPage())
}

func itemCommand(op string) cli.ActionFunc {
	return func(c *cli.Context) error {
		itemID, err := int64Arg(c, 0, "item-id")
		if err != nil {
			return err
		}
		a := appFrom(c)
		ctx := ctxFrom(c)
		switch op {
		case "inc":
			_, err = a.Cart.Increase(ctx, itemID)
		case "dec":
			_, err = a.Cart.Decrease(ctx, itemID)
		default:
			_, err = a.Cart.Remove(ctx, itemID)
		}
		if err != nil {
			return err
		}
		return printCart(c, a.Presenter.CartPage())
	}
}

func cartSet(c *cli.Context) error {
	itemID, err := int64Arg(c, 0, "item-id")
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return errors.Errorf("invalid <qty> %q", c.Args().Get(1))
	}
	a := appFrom(c)
	if _, err := a.Cart.Update(ctxFrom(c), itemID, qty); err != nil {
		return err
	}
	return printCart(c, a.Presenter.CartPage())
}

func cartClear(c *cli.Context) error {
	a := appFrom(c)
	if _, err := a.Cart.Clear(ctxFrom(c)); err != nil {
		return err
	}
	return printCart(c, a.Presenter.CartPage())
}

func cartCount(c *cli.Context) error {
	count := appFrom(c).Cart.RefreshCount(ctxFrom(c))
	if c.Bool("json") {
		return printJSON(c, map[string]int{"count": count})
	}
	_, err := fmt.Fprintln(c.App.Writer, count)
	return err
}

func checkout(c *cli.Context) error {
	a := appFrom(c)
	a.Cart.Fetch(ctxFrom(c))
	return printSummary(c, a.Presenter.Checkout())
}

func printUser(c *cli.Context, user *domain.User) error {
	if c.Bool("json") {
		return printJSON(c, map[string]interface{}{"authenticated": user != nil, "user": user})
	}
	if user == nil {
		_, err := fmt.Fprintln(c.App.Writer, "anonymous")
		return err
	}
	kind := "user"
	if user.IsGuest {
		kind = "guest"
	}
	_, err := fmt.Fprintf(c.App.Writer, "%s (%s)\n", user.DisplayName(), kind)
	return err
}

func printCart(c *cli.Context, page presenter.CartPage) error {
	if c.Bool("json") {
		return printJSON(c, page)
	}
	_, err := fmt.Fprint(c.App.Writer, renderCart(page))
	return err
}

func printSummary(c *cli.Context, sum presenter.Summary) error {
	if c.Bool("json") {
		return printJSON(c, sum)
	}
	_, err := fmt.Fprint(c.App.Writer, renderSummary(sum))
	return err
}
