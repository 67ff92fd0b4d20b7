package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/WangZhewei1027/demoprobe/internal/expect"
	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

const waitBudget = 5 * time.Second

func init() {
	Register(staticSuite())
	Register(barsSuite())
	Register(heapSuite())
	Register(dialogSuite())
	Register(sortSuite())
	Register(canvasSuite())
	Register(mouseSuite())
}

func staticSuite() Suite {
	return Suite{
		Name: "static",
		Page: "static.html",
		Checks: []Check{
			{
				Name: "title-text",
				Fn: func(ctx context.Context, s *harness.Session) error {
					text, err := s.Text(ctx, harness.Selector("#title"))
					if err != nil {
						return err
					}
					return expect.Check(text, expect.Equals("Static Demo"))
				},
			},
			{
				Name: "item-count",
				Fn: func(ctx context.Context, s *harness.Session) error {
					n, err := s.Count(ctx, harness.Selector("li.item"))
					if err != nil {
						return err
					}
					return expect.Check(n, expect.Equals(3))
				},
			},
			{
				// The static page has no interactive elements at all.
				Name: "zero-buttons",
				Fn: func(ctx context.Context, s *harness.Session) error {
					n, err := s.Count(ctx, harness.Selector("button"))
					if err != nil {
						return err
					}
					return expect.Check(n, expect.Equals(0))
				},
			},
			{
				Name: "no-match-counts-zero",
				Fn: func(ctx context.Context, s *harness.Session) error {
					n, err := s.Count(ctx, harness.Selector("#doesNotExist"))
					if err != nil {
						return err
					}
					return expect.Check(n, expect.Equals(0))
				},
			},
			{
				Name: "fill-and-read-back",
				Fn: func(ctx context.Context, s *harness.Session) error {
					input := harness.Selector("#nameInput")
					if err := s.Fill(ctx, input, "Ada"); err != nil {
						return err
					}
					v, err := s.Value(ctx, input)
					if err != nil {
						return err
					}
					return expect.Check(v, expect.Equals("Ada"))
				},
			},
			{
				Name: "select-and-check",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.SelectOption(ctx, harness.Selector("#flavorSelect"), "mint"); err != nil {
						return err
					}
					if err := s.Check(ctx, harness.Selector("#optIn")); err != nil {
						return err
					}
					v, err := s.Value(ctx, harness.Selector("#flavorSelect"))
					if err != nil {
						return err
					}
					return expect.Check(v, expect.OneOf("mint"))
				},
			},
		},
	}
}

func barsSuite() Suite {
	return Suite{
		Name: "bars",
		Page: "bars.html",
		Checks: []Check{
			{
				Name: "generate-renders-five-bars",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.Click(ctx, harness.Selector("#generate")); err != nil {
						return err
					}
					// The page renders on a timer, so an immediate count would
					// race; wait for the render instead.
					n, err := s.WaitForCount(ctx, harness.Selector("div.bar"),
						func(n int) bool { return n == 5 }, waitBudget)
					if err != nil {
						return fmt.Errorf("bars never rendered: %w", err)
					}
					return expect.Check(n, expect.InRange(1, 10))
				},
			},
			{
				Name: "clear-empties-chart",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.Click(ctx, harness.Selector("#generate")); err != nil {
						return err
					}
					if _, err := s.WaitForCount(ctx, harness.Selector("div.bar"),
						func(n int) bool { return n > 0 }, waitBudget); err != nil {
						return err
					}
					if err := s.Click(ctx, harness.Selector("#clear")); err != nil {
						return err
					}
					_, err := s.WaitForCount(ctx, harness.Selector("div.bar"),
						func(n int) bool { return n == 0 }, waitBudget)
					return err
				},
			},
		},
	}
}

func heapSuite() Suite {
	return Suite{
		Name: "heap",
		Page: "heap.html",
		Checks: []Check{
			{
				Name: "insert-grows-heap",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.Click(ctx, harness.Selector("#insertButton")); err != nil {
						return err
					}
					text, err := s.WaitForText(ctx, harness.Selector("#heapSize"),
						func(t string) bool { return t == "1" }, waitBudget)
					if err != nil {
						return err
					}
					return expect.Check(text, expect.MatchesRegexp(`^\d+$`))
				},
			},
			{
				// The page throws a TypeError when removing from an empty
				// heap. The error must land in the buffer without failing the
				// click itself.
				Name:            "remove-from-empty-records-type-error",
				AllowPageErrors: true,
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.Click(ctx, harness.Selector("#removeButton")); err != nil {
						return fmt.Errorf("click should not propagate the page error: %w", err)
					}

					deadline := time.Now().Add(waitBudget)
					for {
						errs := s.Signals().RuntimeErrors()
						if len(errs) > 0 {
							return expect.Check(string(errs[0].Kind), expect.Equals(string(harness.TypeError)))
						}
						if time.Now().After(deadline) {
							return fmt.Errorf("no runtime error recorded within %s", waitBudget)
						}
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-time.After(50 * time.Millisecond):
						}
					}
				},
			},
		},
	}
}

func dialogSuite() Suite {
	return Suite{
		Name: "dialog",
		Page: "dialog.html",
		Checks: []Check{
			{
				Name: "prompt-accept-with-text",
				Fn: func(ctx context.Context, s *harness.Session) error {
					s.Signals().OnNextDialog(harness.DialogResponse{Accept: true, PromptText: "Grace"})
					if err := s.Click(ctx, harness.Selector("#promptButton")); err != nil {
						return err
					}
					text, err := s.WaitForText(ctx, harness.Selector("#resultDisplay"),
						func(t string) bool { return t != "" }, waitBudget)
					if err != nil {
						return err
					}
					return expect.Check(text, expect.Equals("hello Grace"))
				},
			},
			{
				Name: "confirm-dismiss",
				Fn: func(ctx context.Context, s *harness.Session) error {
					s.Signals().OnNextDialog(harness.DialogResponse{Accept: false})
					if err := s.Click(ctx, harness.Selector("#confirmButton")); err != nil {
						return err
					}
					text, err := s.WaitForText(ctx, harness.Selector("#resultDisplay"),
						func(t string) bool { return t != "" }, waitBudget)
					if err != nil {
						return err
					}
					return expect.Check(text, expect.Equals("declined"))
				},
			},
		},
	}
}

func sortSuite() Suite {
	return Suite{
		Name: "sort",
		Page: "sort.html",
		Checks: []Check{
			{
				Name: "sort-reaches-sorted-status",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.Click(ctx, harness.Selector("#sortButton")); err != nil {
						return err
					}
					text, err := s.WaitForText(ctx, harness.Selector("#status"),
						func(t string) bool { return t == "sorted" }, waitBudget)
					if err != nil {
						return err
					}
					return expect.Check(text, expect.OneOf("sorted"))
				},
			},
		},
	}
}

func canvasSuite() Suite {
	return Suite{
		Name: "canvas",
		Page: "canvas.html",
		Checks: []Check{
			{
				Name: "draw-fills-pixels",
				Fn: func(ctx context.Context, s *harness.Session) error {
					board := harness.Selector("#board")

					blank, err := s.CanvasPixels(ctx, board)
					if err != nil {
						return err
					}
					if !allZero(blank) {
						return fmt.Errorf("canvas had %d non-zero bytes before drawing", countNonZero(blank))
					}

					if err := s.Click(ctx, harness.Selector("#drawButton")); err != nil {
						return err
					}

					drawn, err := s.CanvasPixels(ctx, board)
					if err != nil {
						return err
					}
					return expect.Check(countNonZero(drawn), expect.InRange(1, float64(len(drawn))))
				},
			},
		},
	}
}

func mouseSuite() Suite {
	return Suite{
		Name: "mouse",
		Page: "mouse.html",
		Checks: []Check{
			{
				Name: "move-down-up-tracked",
				Fn: func(ctx context.Context, s *harness.Session) error {
					box, err := s.BoundingBox(ctx, harness.Selector("#pad"))
					if err != nil {
						return err
					}
					cx := box.X + box.Width/2
					cy := box.Y + box.Height/2

					if err := s.MouseMove(ctx, cx, cy); err != nil {
						return err
					}
					if _, err := s.WaitForText(ctx, harness.Selector("#lastEvent"),
						func(t string) bool { return t == "move" }, waitBudget); err != nil {
						return err
					}

					if err := s.MouseDown(ctx); err != nil {
						return err
					}
					if _, err := s.WaitForText(ctx, harness.Selector("#lastEvent"),
						func(t string) bool { return t == "down" }, waitBudget); err != nil {
						return err
					}

					if err := s.MouseUp(ctx); err != nil {
						return err
					}
					if _, err := s.WaitForText(ctx, harness.Selector("#lastEvent"),
						func(t string) bool { return t == "up" }, waitBudget); err != nil {
						return err
					}

					pos, err := s.Text(ctx, harness.Selector("#lastPos"))
					if err != nil {
						return err
					}
					return expect.Check(pos, expect.MatchesRegexp(`^\d+(\.\d+)?,\d+(\.\d+)?$`))
				},
			},
			{
				Name: "dblclick-tracked",
				Fn: func(ctx context.Context, s *harness.Session) error {
					if err := s.DblClick(ctx, harness.Selector("#pad")); err != nil {
						return err
					}
					_, err := s.WaitForText(ctx, harness.Selector("#lastEvent"),
						func(t string) bool { return t == "dblclick" }, waitBudget)
					return err
				},
			},
		},
	}
}

func allZero(b []byte) bool { return countNonZero(b) == 0 }

func countNonZero(b []byte) int {
	n := 0
	for _, v := range b {
		if v != 0 {
			n++
		}
	}
	return n
}
