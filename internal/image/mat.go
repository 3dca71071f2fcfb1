package image

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Mat returns the raster as an 8-bit Mat with its channels in RGB order.
// The caller closes it.
func (r *Raster) Mat() (gocv.Mat, error) {
	var mt gocv.MatType
	switch r.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", r.Channels)
	}
	src, err := gocv.NewMatFromBytes(r.Height, r.Width, mt, r.Pix)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer src.Close()
	return src.Clone(), nil
}

// BGRMat returns an 8-bit three-channel BGR Mat, the layout OpenCV
// networks and color conversions expect. The caller closes it.
func (r *Raster) BGRMat() (gocv.Mat, error) {
	src, err := r.Mat()
	if err != nil {
		return gocv.Mat{}, err
	}
	defer src.Close()

	code := gocv.ColorRGBToBGR
	if r.Channels == 1 {
		code = gocv.ColorGrayToBGR
	}
	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, code)
	return bgr, nil
}

// LabMat returns an 8-bit Lab Mat: L scaled to 0-255, a and b offset
// by 128. The caller closes it.
func (r *Raster) LabMat() (gocv.Mat, error) {
	bgr, err := r.BGRMat()
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bgr.Close()

	lab := gocv.NewMat()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)
	return lab, nil
}

// LabPlanes splits the Lab conversion of r into its three channels.
func (r *Raster) LabPlanes() ([3]*Plane, error) {
	var planes [3]*Plane
	lab, err := r.LabMat()
	if err != nil {
		return planes, err
	}
	defer lab.Close()

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return planes, fmt.Errorf("lab conversion produced %d channels", len(channels))
	}
	for i, c := range channels {
		if planes[i], err = PlaneFromMat(c); err != nil {
			return planes, err
		}
	}
	return planes, nil
}

// Mat returns p as a single-channel float64 Mat. The caller closes it.
func (p *Plane) Mat() (gocv.Mat, error) {
	m := gocv.NewMatWithSize(p.Height, p.Width, gocv.MatTypeCV64F)
	data, err := m.DataPtrFloat64()
	if err != nil {
		m.Close()
		return gocv.Mat{}, err
	}
	copy(data, p.Data)
	return m, nil
}

// PlaneFromMat copies a single-channel Mat of any depth into a plane.
func PlaneFromMat(m gocv.Mat) (*Plane, error) {
	if m.Channels() != 1 {
		return nil, fmt.Errorf("expected a single-channel mat, got %d channels", m.Channels())
	}
	f := gocv.NewMat()
	defer f.Close()
	m.ConvertTo(&f, gocv.MatTypeCV64F)

	data, err := f.DataPtrFloat64()
	if err != nil {
		return nil, err
	}
	p := NewPlane(f.Cols(), f.Rows())
	copy(p.Data, data)
	return p, nil
}

// Mat returns k as a float64 Mat. The caller closes it.
func (k Kernel) Mat() (gocv.Mat, error) {
	return (&Plane{Width: k.Width, Height: k.Height, Data: k.Data}).Mat()
}

// KernelFromMat copies a single-channel Mat into a kernel.
func KernelFromMat(m gocv.Mat) (Kernel, error) {
	p, err := PlaneFromMat(m)
	if err != nil {
		return Kernel{}, err
	}
	return Kernel{Width: p.Width, Height: p.Height, Data: p.Data}, nil
}

// vectorMat returns v as a single-column float64 Mat.
func vectorMat(v []float64) (gocv.Mat, error) {
	return (&Plane{Width: 1, Height: len(v), Data: v}).Mat()
}
