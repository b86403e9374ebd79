package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
	"listings-api/repositories"
	"listings-api/storage"
)

const (
	zipWorkers    = 4
	maxImageBytes = 20 << 20
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// "W타워3 1203", "W타워3 1203호", "W타워3 A동1203호"
var folderUnitRe = regexp.MustCompile(`^(.+?)(?:\s+(\d{2,5})\s*호?|\s*(\d{2,5})\s*호)$`)

// ImageService define la interfaz para las fotos de los avisos
type ImageService interface {
	Upload(ctx context.Context, listingID uint, files []dto.UploadedFile) (*dto.ImageUploadResponse, error)
	List(ctx context.Context, listingID uint) ([]domain.ListingImage, error)
	// Open devuelve la fila de la imagen y su contenido. Lo cierra quien llama
	Open(ctx context.Context, id uint) (*domain.ListingImage, io.ReadCloser, error)
	Delete(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context, listingID uint) (int, error)
	// ImportZip asocia las imágenes de un ZIP a los avisos según el nombre
	// de cada carpeta
	ImportZip(ctx context.Context, r io.ReaderAt, size int64) (*dto.ZipImportReport, error)
}

type imageService struct {
	listings repositories.ListingRepository
	images   repositories.ImageRepository
	store    storage.ImageStore
	notifier *ChangeNotifier
	n        *normalize.Normalizer
	logger   *zap.Logger
}

func NewImageService(
	repos repositories.Repositories,
	store storage.ImageStore,
	notifier *ChangeNotifier,
	n *normalize.Normalizer,
	logger *zap.Logger,
) ImageService {
	return &imageService{
		listings: repos.Listings,
		images:   repos.Images,
		store:    store,
		notifier: notifier,
		n:        n,
		logger:   logger,
	}
}

// sniffImage devuelve el content type de una imagen aceptada. Decide el
// contenido; la extensión solo se mira si el sniffing no encuentra nada
// específico
func sniffImage(name string, data []byte) (string, bool) {
	contentType := http.DetectContentType(data)
	if imageTypes[contentType] {
		return contentType, true
	}
	if contentType == "application/octet-stream" && len(data) > 0 {
		if byExt, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			return byExt, true
		}
	}
	return "", false
}

func (s *imageService) Upload(ctx context.Context, listingID uint, files []dto.UploadedFile) (*dto.ImageUploadResponse, error) {
	// 1. El aviso tiene que existir
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, validationErrorf("no files uploaded")
	}

	// 2. Validar todos los archivos antes de guardar alguno
	types := make([]string, len(files))
	for i, f := range files {
		contentType, ok := sniffImage(f.Name, f.Data)
		if !ok {
			return nil, validationErrorf("%q is not a jpeg, png, gif or webp image", f.Name)
		}
		types[i] = contentType
	}

	// 3. Guardar blobs y filas a continuación de las imágenes existentes
	position, err := s.images.NextPosition(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("next image position: %w", err)
	}
	response := &dto.ImageUploadResponse{Images: make([]domain.ListingImage, 0, len(files))}
	for i, f := range files {
		image, err := s.storeImage(ctx, listingID, f.Name, types[i], f.Data, position+i)
		if err != nil {
			return nil, err
		}
		response.Images = append(response.Images, *image)
	}

	s.logger.Info("images uploaded", zap.Uint("listing_id", listingID), zap.Int("count", len(files)))
	s.notifier.Changed(ctx, domain.EventImagesChanged, listingID)
	return response, nil
}

func (s *imageService) storeImage(ctx context.Context, listingID uint, name, contentType string, data []byte, position int) (*domain.ListingImage, error) {
	key, err := s.store.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store image %q: %w", name, err)
	}
	image := &domain.ListingImage{
		ListingID:   listingID,
		StorageKey:  key,
		FileName:    path.Base(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		Position:    position,
	}
	if err := s.images.Create(ctx, image); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned image blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("save image row: %w", err)
	}
	return image, nil
}

func (s *imageService) List(ctx context.Context, listingID uint) ([]domain.ListingImage, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	images, err := s.images.ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []domain.ListingImage{}
	}
	return images, nil
}

func (s *imageService) Open(ctx context.Context, id uint) (*domain.ListingImage, io.ReadCloser, error) {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, image.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("image %d content: %w", id, repositories.ErrNotFound)
		}
		return nil, nil, err
	}
	return image, rc, nil
}

func (s *imageService) Delete(ctx context.Context, id uint) error {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return err
	}
	removeBlobs(ctx, s.store, []domain.ListingImage{*image}, s.logger)
	s.notifier.Changed(ctx, domain.EventImagesChanged, image.ListingID)
	return nil
}

func (s *imageService) DeleteAll(ctx context.Context, listingID uint) (int, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return 0, err
	}
	removed, err := s.images.DeleteByListing(ctx, listingID)
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	removeBlobs(ctx, s.store, removed, s.logger)
	s.notifier.Changed(ctx, domain.EventImagesChanged, listingID)
	return len(removed), nil
}

// zipFolder es una carpeta del ZIP con sus imágenes
type zipFolder struct {
	name  string
	files []*zip.File
}

// zipUpload es una imagen leída del ZIP y guardada como blob
type zipUpload struct {
	listingID   uint
	name        string
	contentType string
	size        int64
	key         string
	skipped     bool
}

func (s *imageService) ImportZip(ctx context.Context, r io.ReaderAt, size int64) (*dto.ZipImportReport, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, validationErrorf("not a valid zip archive: %v", err)
	}

	report := &dto.ZipImportReport{Matched: []dto.ZipFolderMatch{}, Unmatched: []dto.ZipFolderMiss{}}

	// 1. Agrupar las imágenes por carpeta
	folders, skipped := groupZipEntries(zr.File)
	report.Skipped = skipped
	if len(folders) == 0 {
		return nil, validationErrorf("the archive contains no images inside folders")
	}

	// 2. Resolver cada carpeta a un aviso
	listings, err := s.listings.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	index := make(map[string][]*domain.Listing)
	for i := range listings {
		building, _ := normalize.SplitUnit(listings[i].BuildingName)
		key := normalize.NameKey(building)
		index[key] = append(index[key], &listings[i])
	}

	var uploads []*zipUpload
	var entries []*zip.File
	matched := make(map[string]int)
	for _, folder := range folders {
		listing, reason := s.resolveFolder(folder.name, index)
		if listing == nil {
			report.Unmatched = append(report.Unmatched, dto.ZipFolderMiss{Folder: folder.name, Reason: reason})
			continue
		}
		matched[folder.name] = len(report.Matched)
		report.Matched = append(report.Matched, dto.ZipFolderMatch{Folder: folder.name, ListingID: listing.ID})
		for _, f := range folder.files {
			uploads = append(uploads, &zipUpload{listingID: listing.ID, name: f.Name})
			entries = append(entries, f)
		}
	}

	// 3. Leer y guardar los blobs en paralelo
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(zipWorkers)
	for i := range uploads {
		up, entry := uploads[i], entries[i]
		g.Go(func() error {
			return s.storeZipEntry(gctx, entry, up)
		})
	}
	if err := g.Wait(); err != nil {
		s.discardUploads(ctx, uploads)
		return nil, err
	}

	// 4. Escribir las filas en el orden del ZIP para que las posiciones sean estables
	positions := make(map[uint]int)
	changed := make([]uint, 0, len(report.Matched))
	for i, up := range uploads {
		if up.skipped {
			report.Skipped++
			continue
		}
		pos, ok := positions[up.listingID]
		if !ok {
			pos, err = s.images.NextPosition(ctx, up.listingID)
			if err != nil {
				s.discardUploads(ctx, uploads[i:])
				return nil, fmt.Errorf("next image position: %w", err)
			}
			changed = append(changed, up.listingID)
		}
		image := &domain.ListingImage{
			ListingID:   up.listingID,
			StorageKey:  up.key,
			FileName:    path.Base(up.name),
			ContentType: up.contentType,
			Size:        up.size,
			Position:    pos,
		}
		if err := s.images.Create(ctx, image); err != nil {
			s.discardUploads(ctx, uploads[i:])
			return nil, fmt.Errorf("save image row: %w", err)
		}
		positions[up.listingID] = pos + 1
		report.Stored++
		report.Matched[matched[path.Dir(up.name)]].Count++
	}

	s.logger.Info("zip images imported",
		zap.Int("folders_matched", len(report.Matched)),
		zap.Int("folders_unmatched", len(report.Unmatched)),
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped))
	if len(changed) > 0 {
		s.notifier.Changed(ctx, domain.EventImagesChanged, changed...)
	}
	return report, nil
}

func (s *imageService) storeZipEntry(ctx context.Context, f *zip.File, up *zipUpload) error {
	if f.UncompressedSize64 > maxImageBytes {
		up.skipped = true
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %q: %w", f.Name, err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes+1))
	rc.Close()
	if err != nil {
		return fmt.Errorf("read %q: %w", f.Name, err)
	}

	contentType, ok := sniffImage(f.Name, data)
	if !ok || len(data) > maxImageBytes {
		up.skipped = true
		return nil
	}

	key, err := s.store.Save(ctx, f.Name, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store %q: %w", f.Name, err)
	}
	up.key, up.contentType, up.size = key, contentType, int64(len(data))
	return nil
}

func (s *imageService) discardUploads(ctx context.Context, uploads []*zipUpload) {
	for _, up := range uploads {
		if up.key == "" {
			continue
		}
		if err := s.store.Delete(ctx, up.key); err != nil {
			s.logger.Warn("orphaned image blob", zap.String("key", up.key), zap.Error(err))
		}
	}
}

// groupZipEntries devuelve las imágenes de cada carpeta, carpetas ordenadas
// por nombre y archivos por ruta. Lo que está fuera de carpetas, la metadata
// de macOS, los dotfiles y lo que no es imagen cuenta como omitido
func groupZipEntries(files []*zip.File) ([]zipFolder, int) {
	skipped := 0
	byDir := make(map[string][]*zip.File)
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if hiddenZipPath(name) {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(path.Ext(name))]; !ok {
			skipped++
			continue
		}
		dir := path.Dir(name)
		if dir == "." {
			skipped++
			continue
		}
		f.Name = name
		byDir[dir] = append(byDir[dir], f)
	}

	folders := make([]zipFolder, 0, len(byDir))
	for dir, fs := range byDir {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
		folders = append(folders, zipFolder{name: dir, files: fs})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].name < folders[j].name })
	return folders, skipped
}

func hiddenZipPath(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, "__MACOSX") || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// resolveFolder busca el aviso que representa una carpeta. La carpeta es
// "edificio/unidad", "edificio unidad" o solo "edificio"; sin unidad solo
// matchea un edificio con un único aviso
func (s *imageService) resolveFolder(folder string, index map[string][]*domain.Listing) (*domain.Listing, string) {
	building, unit := folderText(folder)
	cleaned := s.n.CleanBuildingName(building)
	if unit != "" {
		cleaned += " " + unit + "호"
	}
	building, unit = normalize.SplitUnit(cleaned)
	key := normalize.NameKey(building)
	if key == "" {
		return nil, "folder name has no building"
	}

	candidates := index[key]
	if len(candidates) == 0 {
		return nil, "no listing for building"
	}
	if unit == "" {
		if len(candidates) > 1 {
			return nil, fmt.Sprintf("%d listings share the building; name the unit", len(candidates))
		}
		return candidates[0], ""
	}

	var found []*domain.Listing
	for _, l := range candidates {
		if l.UnitNumber == unit {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Sprintf("no listing with unit %s", unit)
	case 1:
		return found[0], ""
	default:
		return nil, fmt.Sprintf("%d listings have unit %s", len(found), unit)
	}
}

// folderText separa la ruta de una carpeta en edificio y número de unidad.
// Solo se usan los dos últimos segmentos, así se ignoran carpetas contenedoras
func folderText(folder string) (building, unit string) {
	parts := strings.Split(folder, "/")
	last := strings.TrimSpace(parts[len(parts)-1])
	if len(parts) > 1 {
		if digits := strings.TrimSuffix(last, "호"); digits != "" && isDigits(digits) {
			return strings.TrimSpace(parts[len(parts)-2]), digits
		}
	}
	if m := folderUnitRe.FindStringSubmatch(last); m != nil {
		unit = m[2]
		if unit == "" {
			unit = m[3]
		}
		return strings.TrimSpace(m[1]), unit
	}
	return last, ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// removeBlobs borra el contenido de las imágenes cuando ya no están las
// filas. Un error solo deja huérfanos, por eso se loguea
func removeBlobs(ctx context.Context, store storage.ImageStore, images []domain.ListingImage, logger *zap.Logger) {
	for _, img := range images {
		if err := store.Delete(ctx, img.StorageKey); err != nil {
			logger.Warn("delete image blob failed",
				zap.Uint("image_id", img.ID),
				zap.String("key", img.StorageKey),
				zap.Error(err))
		}
	}
}
