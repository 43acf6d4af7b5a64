package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"gocond/pkg/asm"
	"gocond/pkg/compiler"
	"gocond/pkg/config"
	"gocond/pkg/grid"
	"gocond/pkg/logging"
	"gocond/pkg/utils"
	"gocond/pkg/vm"
)

const (
	screenW = 800
	screenH = 600

	listCols  = 4
	cellW     = 120
	cellH     = 16
	lineH     = 16
	panelX    = listCols*cellW + 20
	statusY   = screenH - 2*lineH
	maxOutput = 12
)

var (
	textColor    = color.RGBA{0xd0, 0xd0, 0xd0, 0xff}
	currentColor = color.RGBA{0xff, 0xd0, 0x40, 0xff}
	headerColor  = color.RGBA{0x70, 0xb0, 0xff, 0xff}
	errorColor   = color.RGBA{0xff, 0x60, 0x60, 0xff}
)

type Game struct {
	*stepper
	face text.Face
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		switch r {
		case ' ':
			g.step()
		case 'r', 'R':
			g.reset()
		default:
			g.typeRune(r)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.run()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.backspace()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.snapshot()
	}
	return nil
}

func (g *Game) print(screen *ebiten.Image, msg string, x, y int, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	op.LineSpacing = lineH
	text.Draw(screen, msg, g.face, op)
}

func (g *Game) drawListing(screen *ebiten.Image) {
	prog := g.vm.Program()
	ip := g.vm.IP()
	for i, in := range prog {
		px, py := grid.CellOrigin(i, listCols, cellW, cellH)
		c := textColor
		marker := " "
		if i == ip && !g.vm.Halted() {
			c = currentColor
			marker = ">"
		}
		g.print(screen, fmt.Sprintf("%s%3d %s", marker, i, in), px, py, c)
	}
}

func (g *Game) drawPanels(screen *ebiten.Image) {
	y := 0
	g.print(screen, "Stack (top first)", panelX, y, headerColor)
	y += lineH
	stack := g.vm.Stack()
	for i := len(stack) - 1; i >= 0; i-- {
		g.print(screen, "  "+stack[i].String(), panelX, y, textColor)
		y += lineH
	}

	y += lineH
	g.print(screen, "Symbols", panelX, y, headerColor)
	y += lineH
	for _, pair := range g.vm.Symbols().Pairs() {
		g.print(screen, "  "+pair, panelX, y, textColor)
		y += lineH
	}

	y += lineH
	g.print(screen, "Output", panelX, y, headerColor)
	y += lineH
	lines := g.outputLines()
	if len(lines) > maxOutput {
		lines = lines[len(lines)-maxOutput:]
	}
	g.print(screen, strings.Join(lines, "\n"), panelX+2*7, y, textColor)
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawListing(screen)
	g.drawPanels(screen)

	c := textColor
	if err := g.vm.Err(); err != nil && !g.waitingForInput() {
		c = errorColor
	}
	g.print(screen, g.status, 0, statusY, c)
	g.print(screen, "input> "+g.typed, 0, statusY+lineH, textColor)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

// load compiles a source file, assembles a listing, or restores a snapshot
// depending on the extension.
func load(path string, opts ...vm.Option) (*vm.VM, error) {
	switch filepath.Ext(path) {
	case ".zip":
		return vm.RestoreFromFile(path, opts...)
	case ".lst":
		src, err := utils.ReadSource(path, nil)
		if err != nil {
			return nil, err
		}
		prog, err := asm.Assemble(src)
		if err != nil {
			return nil, err
		}
		return vm.New(prog, opts...), nil
	default:
		src, err := utils.ReadSource(path, nil)
		if err != nil {
			return nil, err
		}
		prog, err := compiler.Compile(src)
		if err != nil {
			return nil, err
		}
		return vm.New(prog, opts...), nil
	}
}

func main() {
	snapPath := flag.String("snapshot", "", "snapshot file written by F5 (default: <file>.zip)")
	trace := flag.Bool("trace", false, "log every executed instruction")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [--snapshot file] [--trace] <file.cond|file.lst|file.zip>")
		os.Exit(2)
	}

	cfg := config.Default()
	if *trace {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fullPath, _, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		logger.Fatal("bad path", "err", err)
	}
	machine, err := load(fullPath, vm.WithLogger(logger), vm.WithTrace(*trace))
	if err != nil {
		logger.Fatal("load failed", "path", fullPath, "err", err)
	}
	if *snapPath == "" {
		*snapPath = utils.WithExt(fullPath, ".zip")
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("gocond stepper: " + filepath.Base(fullPath))

	game := &Game{
		stepper: newStepper(machine, *snapPath, logger),
		face:    text.NewGoXFace(basicfont.Face7x13),
	}
	if err := ebiten.RunGame(game); err != nil {
		logger.Fatal("window closed with error", "err", err)
	}
}
