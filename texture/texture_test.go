package texture

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
)

const rgba8 = gputypes.TextureFormatRGBA8Unorm

func newCube(t *testing.T, b Backend, size, mips int) *Texture {
	t.Helper()
	tex := New(b)
	err := tex.Initialize(Descriptor{Type: TypeCube, Width: size, Height: size, NumMipmaps: mips, Format: rgba8})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return tex
}

func TestTexture_States(t *testing.T) {
	b := &memBackend{}
	tex := New(b)

	if got := tex.State(); got != StateUninitialized {
		t.Fatalf("State() = %v, want uninitialized", got)
	}
	if err := tex.CreateInternalResources(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("CreateInternalResources() before Initialize error = %v, want ErrInvalidState", err)
	}
	if err := tex.SetTextureData(0, filledData(t, 4, 4, rgba8, 0, 0)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetTextureData() before Initialize error = %v, want ErrInvalidState", err)
	}

	if err := tex.Initialize(Descriptor{Width: 4, Height: 4, Format: rgba8}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := tex.State(); got != StateInitialized {
		t.Errorf("State() = %v, want initialized", got)
	}

	if err := tex.SetTextureData(0, filledData(t, 4, 4, rgba8, 0, 0)); err != nil {
		t.Fatalf("SetTextureData() error = %v", err)
	}
	if got := tex.State(); got != StateStaged {
		t.Errorf("State() = %v, want staged", got)
	}

	if err := tex.InitializeFromTextureData(); err != nil {
		t.Fatalf("InitializeFromTextureData() error = %v", err)
	}
	if got := tex.State(); got != StateAllocated {
		t.Errorf("State() = %v, want allocated", got)
	}
	if err := tex.Initialize(Descriptor{Width: 8, Height: 8, Format: rgba8}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Initialize() while allocated error = %v, want ErrInvalidState", err)
	}

	if err := tex.FreeInternalResources(); err != nil {
		t.Fatalf("FreeInternalResources() error = %v", err)
	}
	if got := tex.State(); got != StateInitialized {
		t.Errorf("State() after free = %v, want initialized", got)
	}
}

func TestTexture_CubeMaterialize(t *testing.T) {
	b := &memBackend{}
	tex := newCube(t, b, 8, 2)

	faces := make([]*Data, 6)
	for face := range 6 {
		faces[face] = filledData(t, 8, 8, rgba8, 2, byte(face*16))
		if err := tex.SetTextureData(face, faces[face]); err != nil {
			t.Fatalf("SetTextureData(%d) error = %v", face, err)
		}
	}
	if tex.Staged() != 6 {
		t.Fatalf("Staged() = %d, want 6", tex.Staged())
	}

	if err := tex.InitializeFromTextureData(); err != nil {
		t.Fatalf("InitializeFromTextureData() error = %v", err)
	}
	if tex.Staged() != 0 {
		t.Errorf("Staged() after materialize = %d, want 0", tex.Staged())
	}
	if n := b.creates.Load(); n != 1 {
		t.Errorf("storage creates = %d, want 1", n)
	}

	for face := range 6 {
		buf, err := tex.Buffer(face, 0)
		if err != nil {
			t.Fatalf("Buffer(%d, 0) error = %v", face, err)
		}
		if !buf.Valid() {
			t.Errorf("Buffer(%d, 0) not valid", face)
		}
		for level := range 3 {
			buf, err := tex.Buffer(face, level)
			if err != nil {
				t.Fatalf("Buffer(%d, %d) error = %v", face, level, err)
			}
			got, err := buf.Read()
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !bytes.Equal(got, faces[face].Mips[level]) {
				t.Errorf("face %d level %d pixels differ from staged data", face, level)
			}
		}
	}

	// Nothing left to consume.
	if err := tex.InitializeFromTextureData(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second InitializeFromTextureData() error = %v, want ErrInvalidState", err)
	}
}

func TestTexture_MaterializeRequiresAllFaces(t *testing.T) {
	tex := newCube(t, &memBackend{}, 4, 0)

	if err := tex.SetTextureData(FacePositiveX, filledData(t, 4, 4, rgba8, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if err := tex.InitializeFromTextureData(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("InitializeFromTextureData() with 1 of 6 faces error = %v, want ErrInvalidState", err)
	}
	if tex.Staged() != 1 {
		t.Errorf("Staged() = %d, want staged face kept", tex.Staged())
	}
}

func TestTexture_SetTextureDataErrors(t *testing.T) {
	tex := New(&memBackend{})
	if err := tex.Initialize(Descriptor{Width: 8, Height: 8, NumMipmaps: 1, Format: rgba8}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		face int
		data *Data
		want error
	}{
		{"nil data", 0, nil, ErrDataMismatch},
		{"face out of range", 1, filledData(t, 8, 8, rgba8, 0, 0), ErrFaceOutOfRange},
		{"wrong extent", 0, filledData(t, 4, 4, rgba8, 0, 0), ErrDataMismatch},
		{"wrong format", 0, filledData(t, 8, 8, gputypes.TextureFormatBGRA8Unorm, 0, 0), ErrDataMismatch},
		{"too many mips", 0, filledData(t, 8, 8, rgba8, 3, 0), ErrDataMismatch},
		{"corrupt data", 0, &Data{Width: 8, Height: 8, Depth: 1, Format: rgba8, Mips: [][]byte{{1, 2, 3}}}, ErrDataMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tex.SetTextureData(tt.face, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("SetTextureData() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTexture_PartialMipUpload(t *testing.T) {
	tex := New(&memBackend{})
	if err := tex.Initialize(Descriptor{Width: 8, Height: 8, NumMipmaps: 3, Format: rgba8}); err != nil {
		t.Fatal(err)
	}
	base := filledData(t, 8, 8, rgba8, 0, 7)
	if err := tex.SetTextureData(0, base); err != nil {
		t.Fatal(err)
	}
	if err := tex.InitializeFromTextureData(); err != nil {
		t.Fatal(err)
	}

	got, err := tex.TextureData(0)
	if err != nil {
		t.Fatalf("TextureData() error = %v", err)
	}
	if got.NumMipmaps() != 3 {
		t.Errorf("NumMipmaps() = %d, want 3", got.NumMipmaps())
	}
	if !bytes.Equal(got.Mips[0], base.Mips[0]) {
		t.Error("base level differs from uploaded data")
	}
}

func TestTexture_CreateFreeIdempotent(t *testing.T) {
	b := &memBackend{}
	tex, err := Create(b, Descriptor{Width: 4, Height: 4, Format: rgba8})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tex.CreateInternalResources(); err != nil {
		t.Fatal(err)
	}
	if n := b.creates.Load(); n != 1 {
		t.Errorf("creates = %d, want 1", n)
	}

	for range 2 {
		if err := tex.FreeInternalResources(); err != nil {
			t.Fatal(err)
		}
	}
	if n := b.frees.Load(); n != 1 {
		t.Errorf("frees = %d, want 1", n)
	}

	if err := tex.CreateInternalResources(); err != nil {
		t.Fatal(err)
	}
	if n := b.creates.Load(); n != 2 {
		t.Errorf("creates after re-create = %d, want 2", n)
	}
}

func TestTexture_BufferAfterFree(t *testing.T) {
	tex, err := Create(&memBackend{}, Descriptor{Width: 4, Height: 4, Format: rgba8})
	if err != nil {
		t.Fatal(err)
	}
	held, err := tex.Buffer(0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := tex.FreeInternalResources(); err != nil {
		t.Fatal(err)
	}

	if _, err := tex.Buffer(0, 0); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("Buffer() after free error = %v, want ErrNotAllocated", err)
	}
	if held.Valid() {
		t.Error("buffer obtained before free still reports Valid()")
	}
	if err := held.Write(make([]byte, 64)); !errors.Is(err, ErrBufferInvalid) {
		t.Errorf("Write() on freed buffer error = %v, want ErrBufferInvalid", err)
	}
	if _, err := held.Read(); !errors.Is(err, ErrBufferInvalid) {
		t.Errorf("Read() on freed buffer error = %v, want ErrBufferInvalid", err)
	}
}

func TestTexture_BufferRange(t *testing.T) {
	tex, err := Create(&memBackend{}, Descriptor{Width: 4, Height: 4, NumMipmaps: 1, Format: rgba8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tex.Buffer(1, 0); !errors.Is(err, ErrFaceOutOfRange) {
		t.Errorf("Buffer(1, 0) error = %v, want ErrFaceOutOfRange", err)
	}
	if _, err := tex.Buffer(0, 2); !errors.Is(err, ErrMipOutOfRange) {
		t.Errorf("Buffer(0, 2) error = %v, want ErrMipOutOfRange", err)
	}
	buf, err := tex.Buffer(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width() != 2 || buf.Height() != 2 {
		t.Errorf("mip 1 extent = %dx%d, want 2x2", buf.Width(), buf.Height())
	}
}

func TestTexture_Unload(t *testing.T) {
	b := &memBackend{}
	tex, err := Create(b, Descriptor{Width: 4, Height: 4, Format: rgba8})
	if err != nil {
		t.Fatal(err)
	}
	if err := tex.SetTextureData(0, filledData(t, 4, 4, rgba8, 0, 0)); err != nil {
		t.Fatal(err)
	}

	if err := tex.Unload(); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if tex.Staged() != 0 {
		t.Error("Unload() kept staged data")
	}
	if tex.State() != StateInitialized {
		t.Errorf("State() after Unload = %v, want initialized", tex.State())
	}
	if tex.Width() != 4 {
		t.Error("Unload() dropped metadata")
	}
}

func TestTexture_BackendFailure(t *testing.T) {
	boom := errors.New("out of video memory")
	tex := New(&memBackend{failErr: boom})
	if err := tex.Initialize(Descriptor{Width: 4, Height: 4, Format: rgba8}); err != nil {
		t.Fatal(err)
	}
	if err := tex.CreateInternalResources(); !errors.Is(err, boom) {
		t.Errorf("CreateInternalResources() error = %v, want backend error", err)
	}
	if tex.State() != StateInitialized {
		t.Errorf("State() = %v, want initialized", tex.State())
	}

	if err := New(nil).Initialize(Descriptor{Width: 4, Height: 4, Format: rgba8}); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(nil, Descriptor{Width: 4, Height: 4, Format: rgba8}); !errors.Is(err, ErrNilBackend) {
		t.Errorf("Create(nil) error = %v, want ErrNilBackend", err)
	}
}

func TestTexture_SizeAndMetadata(t *testing.T) {
	tex := newCube(t, &memBackend{}, 4, MipUnlimited)

	// 6 faces * (4x4 + 2x2 + 1x1) * 4 bytes
	if got, want := tex.Size(), uint64(6*(16+4+1)*4); got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	if tex.NumFaces() != 6 {
		t.Errorf("NumFaces() = %d, want 6", tex.NumFaces())
	}
	if tex.NumMipmaps() != 2 {
		t.Errorf("NumMipmaps() = %d, want 2", tex.NumMipmaps())
	}
	if !tex.HasAlpha() {
		t.Error("HasAlpha() = false for RGBA8")
	}
	if tex.Type() != TypeCube || tex.Format() != rgba8 || tex.Usage() != UsageDefault {
		t.Errorf("metadata = %v %v %#x", tex.Type(), tex.Format(), tex.Usage())
	}
	if New(nil).Size() != 0 {
		t.Error("uninitialized texture has non-zero size")
	}
	if got := tex.TypeInfo().Name; got != "Texture" {
		t.Errorf("TypeInfo().Name = %q", got)
	}
}

func TestTexture_UpdateData(t *testing.T) {
	tex, err := Create(&memBackend{}, Descriptor{Width: 2, Height: 2, Format: rgba8})
	if err != nil {
		t.Fatal(err)
	}
	pix := bytes.Repeat([]byte{9}, 16)
	if err := tex.UpdateData(pix); err != nil {
		t.Fatalf("UpdateData() error = %v", err)
	}
	if err := tex.UpdateData(pix[:4]); !errors.Is(err, ErrDataMismatch) {
		t.Errorf("UpdateData(short) error = %v, want ErrDataMismatch", err)
	}

	if err := tex.UpdateRegion(1, 1, 1, 1, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("UpdateRegion() error = %v", err)
	}
	d, err := tex.TextureData(0)
	if err != nil {
		t.Fatal(err)
	}
	want := append(bytes.Repeat([]byte{9}, 12), 1, 2, 3, 4)
	if !bytes.Equal(d.Mips[0], want) {
		t.Errorf("pixels = %v, want %v", d.Mips[0], want)
	}
	if err := tex.UpdateRegion(1, 1, 2, 2, make([]byte, 16)); !errors.Is(err, ErrDataMismatch) {
		t.Errorf("UpdateRegion() outside bounds error = %v, want ErrDataMismatch", err)
	}
}

func TestTexture_ConcurrentRegionUpdates(t *testing.T) {
	const size = 64
	tex, err := Create(&memBackend{}, Descriptor{Width: size, Height: 1, Format: gputypes.TextureFormatR8Unorm})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for x := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tex.UpdateRegion(x, 0, 1, 1, []byte{0xFF}); err != nil {
				t.Errorf("UpdateRegion(%d) error = %v", x, err)
			}
		}()
	}
	wg.Wait()

	d, err := tex.TextureData(0)
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat([]byte{0xFF}, size); !bytes.Equal(d.Mips[0], want) {
		t.Errorf("pixels = %v, want all 0xFF", d.Mips[0])
	}
}

func TestTexture_ConcurrentReaders(t *testing.T) {
	tex, err := Create(&memBackend{}, Descriptor{Width: 4, Height: 4, Format: rgba8})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = tex.Width()
				_ = tex.State()
				if buf, err := tex.Buffer(0, 0); err == nil {
					_, _ = buf.Read()
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			_ = tex.FreeInternalResources()
			_ = tex.CreateInternalResources()
		}
	}()
	wg.Wait()
}
