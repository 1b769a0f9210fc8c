package highlight

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// annotation flag bit 3
const annotFlagPrint = 4

var highlightColor = []float64{1, 1, 0}

type PdfcpuOpener struct {
	conf *model.Configuration
}

func NewPdfcpuOpener() PdfcpuOpener {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return PdfcpuOpener{conf: conf}
}

func (o PdfcpuOpener) Open(pdf []byte) (Document, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), o.conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return &pdfcpuDocument{ctx: ctx}, nil
}

type pdfcpuDocument struct {
	ctx *model.Context
}

func (d *pdfcpuDocument) PageCount() int {
	return d.ctx.PageCount
}

func (d *pdfcpuDocument) PageHeight(page int) (float64, error) {
	_, _, inherited, err := d.ctx.PageDict(page, false)
	if err != nil {
		return 0, err
	}
	if inherited == nil || inherited.MediaBox == nil {
		return 0, errors.New("page has no media box")
	}
	return inherited.MediaBox.Height(), nil
}

func (d *pdfcpuDocument) AddHighlight(page int, r Rect) error {
	pageDict, pageIndRef, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return err
	}
	if pageDict == nil || pageIndRef == nil {
		return fmt.Errorf("page %d not found", page)
	}

	annot := types.Dict(map[string]types.Object{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Highlight"),
		"Rect":    types.NewNumberArray(r.LLX, r.LLY, r.URX, r.URY),
		// upper left, upper right, lower left, lower right
		"QuadPoints": types.NewNumberArray(r.LLX, r.URY, r.URX, r.URY, r.LLX, r.LLY, r.URX, r.LLY),
		"C":          types.NewNumberArray(highlightColor...),
		"F":          types.Integer(annotFlagPrint),
		"P":          *pageIndRef,
	})
	annotRef, err := d.ctx.IndRefForNewObject(annot)
	if err != nil {
		return err
	}

	existing, found := pageDict.Find("Annots")
	if !found || existing == nil {
		pageDict.Insert("Annots", types.Array{*annotRef})
		return nil
	}
	annots, err := d.ctx.DereferenceArray(existing)
	if err != nil {
		return err
	}
	annots = append(annots, *annotRef)

	// an indirect Annots array is shared through the xref table, update it there
	if ref, ok := existing.(types.IndirectRef); ok {
		entry, found := d.ctx.FindTableEntryForIndRef(&ref)
		if !found || entry == nil {
			return errors.New("annotation array not found")
		}
		entry.Object = annots
		return nil
	}
	pageDict.Update("Annots", annots)
	return nil
}

func (d *pdfcpuDocument) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
