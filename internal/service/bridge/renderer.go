package bridge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/occupancy"
)

type RenderOptions struct {
	// Sensor is the last snapshot reported by the board; squares where it
	// disagrees with the position are outlined.
	Sensor *occupancy.Snapshot
	// LastMove is highlighted when set, in coordinate notation.
	LastMove string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, fen string, opts RenderOptions) ([]byte, error)
}

type svgBoardRenderer struct{}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{}
}

const (
	squareSize   = 64
	boardMargin  = 24
	boardSquares = 8
	outlineWidth = 4
)

var (
	lightSquare        = color.RGBA{233, 207, 163, 255}
	darkSquare         = color.RGBA{187, 136, 96, 255}
	lastMoveFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	sensorExtraColor   = color.NRGBA{R: 220, G: 40, B: 40, A: 255}
	sensorMissingColor = color.NRGBA{R: 40, G: 120, B: 230, A: 255}
	backgroundColor    = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	coordinateColor    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, fen string, opts RenderOptions) ([]byte, error) {
	fenOpt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("decode fen: %w", err)
	}
	pos := nchess.NewGame(fenOpt).Position()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	total := squareSize*boardSquares + boardMargin*2
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	origin := image.Point{X: boardMargin, Y: boardMargin}

	drawSquares(img, origin)
	if mv, err := board.ParseMove(opts.LastMove); err == nil {
		fillSquare(img, origin, mv.From, lastMoveFill)
		fillSquare(img, origin, mv.To, lastMoveFill)
	}
	if err := drawPieces(img, pos.Board(), origin); err != nil {
		return nil, err
	}
	if opts.Sensor != nil && !opts.Sensor.Empty() {
		drawSensorMismatch(img, origin, *opts.Sensor, boardOccupancy(pos.Board()))
	}
	drawCoordinates(img, origin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareRect maps a square to pixels with white at the bottom.
func squareRect(origin image.Point, sq board.Square) image.Rectangle {
	x := origin.X + sq.File()*squareSize
	y := origin.Y + (7-sq.Rank())*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for file := 0; file < boardSquares; file++ {
		for rank := 0; rank < boardSquares; rank++ {
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			sq := board.NewSquare(file, rank)
			imagedraw.Draw(dst, squareRect(origin, sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func fillSquare(dst imagedraw.Image, origin image.Point, sq board.Square, clr color.Color) {
	imagedraw.Draw(dst, squareRect(origin, sq), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst imagedraw.Image, b *nchess.Board, origin image.Point) error {
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := b.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			rect := squareRect(origin, board.NewSquare(int(file), int(rank)))
			imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func boardOccupancy(b *nchess.Board) occupancy.Snapshot {
	var snap occupancy.Snapshot
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := b.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			sq := board.NewSquare(int(file), int(rank))
			if piece.Color() == nchess.White {
				snap.White = snap.White.Add(sq)
			} else {
				snap.Black = snap.Black.Add(sq)
			}
		}
	}
	return snap
}

// drawSensorMismatch outlines squares the sensor reports but the position
// does not have in red, and squares the sensor misses in blue.
func drawSensorMismatch(dst *image.RGBA, origin image.Point, sensor, current occupancy.Snapshot) {
	d := occupancy.Diff(sensor, current)
	for _, sq := range d.WhiteAdded.Union(d.BlackAdded).Squares() {
		outlineSquare(dst, origin, sq, sensorExtraColor)
	}
	for _, sq := range d.WhiteRemoved.Union(d.BlackRemoved).Squares() {
		outlineSquare(dst, origin, sq, sensorMissingColor)
	}
}

func outlineSquare(dst *image.RGBA, origin image.Point, sq board.Square, clr color.Color) {
	r := squareRect(origin, sq)
	src := image.NewUniform(clr)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+outlineWidth),
		image.Rect(r.Min.X, r.Max.Y-outlineWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+outlineWidth, r.Max.Y),
		image.Rect(r.Max.X-outlineWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		imagedraw.Draw(dst, e, src, image.Point{}, imagedraw.Over)
	}
}

func drawCoordinates(dst imagedraw.Image, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(coordinateColor),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + boardSquares*squareSize

	for i := 0; i < boardSquares; i++ {
		fileLabel := string(rune('a' + i))
		rankLabel := string(rune('8' - i))
		drawCenteredText(drawer, fileLabel, origin.X+i*squareSize+squareSize/2, boardEnd+(boardMargin+ascent)/2)
		drawCenteredText(drawer, rankLabel, origin.X/2, origin.Y+i*squareSize+squareSize/2+ascent/2)
	}
}

func drawCenteredText(d *font.Drawer, text string, centerX, baseline int) {
	width := d.MeasureString(text).Ceil()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}
