package bridge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs share a 100x100 disc; the inner mark identifies the type.
const pieceSVGTemplate = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">
<circle cx="50" cy="50" r="40" fill="{{body}}" stroke="{{edge}}" stroke-width="5"/>
{{mark}}
</svg>`

var pieceMarks = map[nchess.PieceType]string{
	nchess.Pawn:   `<circle cx="50" cy="50" r="10" fill="{{edge}}"/>`,
	nchess.Knight: `<polygon points="50,26 74,70 26,70" fill="{{edge}}"/>`,
	nchess.Bishop: `<polygon points="50,24 72,50 50,76 28,50" fill="{{edge}}"/>`,
	nchess.Rook:   `<rect x="30" y="30" width="40" height="40" fill="{{edge}}"/>`,
	nchess.Queen:  `<polygon points="50,22 58,42 78,42 62,56 68,76 50,64 32,76 38,56 22,42 42,42" fill="{{edge}}"/>`,
	nchess.King:   `<path d="M44 22 H56 V44 H78 V56 H56 V78 H44 V56 H22 V44 H44 Z" fill="{{edge}}"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	mark, ok := pieceMarks[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}
	body, edge := "#f5f1e8", "#1b1b1b"
	if piece.Color() == nchess.Black {
		body, edge = "#262626", "#f0f0f0"
	}
	svg := strings.Replace(pieceSVGTemplate, "{{mark}}", mark, 1)
	svg = strings.ReplaceAll(svg, "{{body}}", body)
	svg = strings.ReplaceAll(svg, "{{edge}}", edge)
	return []byte(svg), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
